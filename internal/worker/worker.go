// Package worker implements the remote worker state machine: for one
// remote node, fetch events in seqno order, apply admin events one at a
// time, group SYNC events up to a configured size, and apply each group
// in a single transaction that also advances the local confirmation
// watermark for that node. The apply step follows an OnBegin/OnData/
// OnCommit transaction framing, built around an xmin/xmax/xip-based
// visibility cursor rather than a resolved-timestamp one.
package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/slonyx/slon/internal/capture"
	"github.com/slonyx/slon/internal/clusterconfig"
	"github.com/slonyx/slon/internal/quote"
	"github.com/slonyx/slon/internal/scheduler"
)

// TableResolver maps a captured table id to its qualified name at the
// receiver, since sl_log rows only carry the numeric log_tableid.
type TableResolver func(tableID int32) (qualifiedName string, ok bool)

// Config bundles the tunables a worker needs, all sourced from the
// daemon's CLI/config-file flags.
type Config struct {
	SyncGroupMaxSize  int           // -g
	DesiredSyncTime   time.Duration // -o
	ConnectRetryBase  time.Duration // pa_connretry, seconds, per path
	ArchiveDir        string        // -a, empty disables SYNC archiving
}

// RemoteWorker drives replication from Origin into the local node (if
// Origin refers to a provider this node subscribes through) or onward
// to Receiver (if this daemon instance is acting on behalf of the
// origin node pushing to a subscriber) — the direction is symmetric in
// code, the Store and wiring determine which role a given instance
// plays.
type RemoteWorker struct {
	Origin   clusterconfig.NodeID
	Receiver clusterconfig.NodeID

	Store     *clusterconfig.Store
	Sched     *scheduler.Scheduler
	EventLog  *capture.EventLog
	Tables    TableResolver
	Schema    string
	Cfg       Config

	// FetchEvents and FetchLogRows are supplied by the caller so this
	// package stays independent of a concrete SQL fetch strategy;
	// production wiring backs them with pgx queries against the
	// provider's sl_event/sl_log_1/sl_log_2 tables. FetchLogRows is
	// bounded by the transaction-id window [xidLow, xidHigh) a SYNC
	// group's snapshot delta covers, not by event seqno.
	FetchEvents  func(ctx context.Context, after int64, limit int) ([]clusterconfig.Event, error)
	FetchLogRows func(ctx context.Context, origin clusterconfig.NodeID, xidLow, xidHigh int64) ([]clusterconfig.LogRow, error)

	// FetchEventSnapshot loads the (xmin, xmax, xip) snapshot recorded
	// on a specific past SYNC/ENABLE_SUBSCRIPTION event, used to
	// recover the previous-SYNC snapshot this worker needs across a
	// reconnect or a process restart.
	FetchEventSnapshot func(ctx context.Context, origin clusterconfig.NodeID, seqno int64) (clusterconfig.Event, error)

	state    State
	pending  []clusterconfig.Event
	group    []clusterconfig.Event
	prevSnap clusterconfig.Event
}

// Run drives the state machine until ctx is cancelled or a fatal
// protocol/data error occurs.
func (w *RemoteWorker) Run(ctx context.Context, targetPool *pgxpool.Pool) error {
	w.state = StateInit
	for {
		select {
		case <-ctx.Done():
			w.state = StateExit
			return ctx.Err()
		default:
		}

		switch w.state {
		case StateInit:
			w.state = StateConnect

		case StateConnect:
			if targetPool == nil {
				return errors.New("worker: nil target pool")
			}
			if err := targetPool.Ping(ctx); err != nil {
				logrus.WithError(err).WithField("origin", w.Origin).Warn("worker: connect failed, retrying")
				if err := scheduler.Backoff(ctx, w.retryInterval(), 1, func() error { return targetPool.Ping(ctx) }); err != nil {
					w.state = StateDisconnect
					continue
				}
			}
			if err := w.recoverSnapshot(ctx); err != nil {
				return err
			}
			w.state = StateCaughtUp

		case StateCaughtUp:
			after := w.Store.LastEvent(w.Origin)
			events, err := w.FetchEvents(ctx, after, w.Cfg.SyncGroupMaxSize+1)
			if err != nil {
				return errors.Wrap(err, "worker: fetch events")
			}
			if len(events) == 0 {
				if err := w.Sched.Msleep(ctx, w.Receiver, 200*time.Millisecond); err != nil {
					return err
				}
				continue
			}
			w.pending = events
			w.state = StateProcessEvent

		case StateProcessEvent:
			if len(w.pending) == 0 {
				w.state = StateCaughtUp
				continue
			}
			head := w.pending[0]
			if !head.IsSync() {
				if err := w.applyAdmin(ctx, targetPool, head); err != nil {
					return err
				}
				w.Store.SetLastEvent(w.Origin, head.Seqno)
				w.pending = w.pending[1:]
				continue
			}
			w.group = w.groupSyncEvents()
			w.state = StateSyncGroupApply

		case StateSyncGroupApply:
			if err := w.applySyncGroup(ctx, targetPool, w.group); err != nil {
				return err
			}
			w.state = StateConfirm

		case StateConfirm:
			last := w.group[len(w.group)-1]
			w.Store.SetLastEvent(w.Origin, last.Seqno)
			w.pending = w.pending[len(w.group):]
			w.group = nil
			w.state = StateProcessEvent

		case StateDisconnect:
			return errors.New("worker: disconnected, supervisor should restart")

		case StateExit:
			return nil
		}
	}
}

// recoverSnapshot restores w.prevSnap from the last confirmed seqno's
// own event row, so a reconnect or restart doesn't lose track of the
// snapshot boundary the next SYNC group's delta must be taken against.
// w.prevSnap's zero value (no prior event recovered) is itself correct
// for a worker that has never confirmed anything: SelectDelta then
// treats every row visible under the current snapshot as new.
func (w *RemoteWorker) recoverSnapshot(ctx context.Context) error {
	if w.FetchEventSnapshot == nil {
		return nil
	}
	last := w.Store.LastEvent(w.Origin)
	if last <= 0 {
		return nil
	}
	snap, err := w.FetchEventSnapshot(ctx, w.Origin, last)
	if err != nil {
		return errors.Wrap(err, "worker: recover prior SYNC snapshot")
	}
	w.prevSnap = snap
	return nil
}

func (w *RemoteWorker) retryInterval() time.Duration {
	if w.Cfg.ConnectRetryBase <= 0 {
		return 10 * time.Second
	}
	return w.Cfg.ConnectRetryBase
}

// groupSyncEvents consumes consecutive SYNC events from the front of
// w.pending, up to SyncGroupMaxSize, stopping early at the first
// non-SYNC event. The group size is fixed by SyncGroupMaxSize alone;
// DesiredSyncTime is not consulted, so the size does not adapt to
// measured apply time.
func (w *RemoteWorker) groupSyncEvents() []clusterconfig.Event {
	var group []clusterconfig.Event
	for _, e := range w.pending {
		if !e.IsSync() {
			break
		}
		group = append(group, e)
		if w.Cfg.SyncGroupMaxSize > 0 && len(group) >= w.Cfg.SyncGroupMaxSize {
			break
		}
	}
	return group
}

// applyAdmin applies a single non-SYNC event inside its own
// transaction, which also advances sl_confirm, giving at-most-once
// semantics even across a crash between apply and confirm.
func (w *RemoteWorker) applyAdmin(ctx context.Context, pool *pgxpool.Pool, ev clusterconfig.Event) (err error) {
	origin := strconv.FormatInt(int64(w.Origin), 10)
	defer func() {
		if err != nil {
			applyErrors.WithLabelValues(origin, "admin").Inc()
		}
	}()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "worker: begin admin tx")
	}
	defer tx.Rollback(ctx)

	if err = w.applyAdminEffect(ctx, tx, ev); err != nil {
		return err
	}
	if err = w.confirmInTx(ctx, tx, ev.Seqno); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "worker: commit admin tx")
	}
	logrus.WithFields(logrus.Fields{"origin": w.Origin, "seqno": ev.Seqno, "type": ev.Type}).Info("worker: applied admin event")
	return nil
}

// applyAdminEffect performs the catalog-level side effect of an admin
// event by decoding ev.Data and calling the matching clusterconfig
// mutator, applied in event seqno order inside the same transaction
// that advances sl_confirm.
func (w *RemoteWorker) applyAdminEffect(ctx context.Context, tx pgx.Tx, ev clusterconfig.Event) error {
	if err := clusterconfig.ApplyAdminEvent(w.Store, ev); err != nil {
		return errors.Wrap(err, "worker: apply admin event")
	}
	return nil
}

// applySyncGroup applies the snapshot delta between the previous SYNC
// this worker applied and the grouped run's last SYNC — the rows
// committed as of the new snapshot but not yet as of the old one —
// inside one transaction, then advances confirm to the group's last
// seqno. Restricting to the delta rather than everything visible under
// the new snapshot is what keeps repeated SYNC groups from re-applying
// rows an earlier group already committed.
func (w *RemoteWorker) applySyncGroup(ctx context.Context, pool *pgxpool.Pool, group []clusterconfig.Event) (err error) {
	if len(group) == 0 {
		return nil
	}
	originLabel := strconv.FormatInt(int64(w.Origin), 10)
	defer func() {
		if err != nil {
			applyErrors.WithLabelValues(originLabel, "sync").Inc()
		} else {
			syncGroupSize.WithLabelValues(originLabel).Observe(float64(len(group)))
		}
	}()

	first, last := group[0], group[len(group)-1]
	prev := w.prevSnap

	// The delta window is bounded below by the previous snapshot's xmin
	// (anything older is guaranteed already applied) and above by the
	// current snapshot's xmax (anything newer hasn't started yet); the
	// exact in-progress/visible boundary within that window is then
	// resolved row by row via SelectDelta.
	rows, err := w.FetchLogRows(ctx, w.Origin, prev.Xmin, last.Xmax)
	if err != nil {
		return errors.Wrap(err, "worker: fetch log rows")
	}
	visible := SelectDelta(rows, prev, last)
	visible = CoalesceByKey(visible, DefaultKeyFunc)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "worker: begin sync tx")
	}
	defer tx.Rollback(ctx)

	for _, r := range visible {
		if err := w.applyLogRow(ctx, tx, r); err != nil {
			return errors.Wrapf(err, "worker: apply log row actionseq=%d", r.ActionSeq)
		}
	}
	if err := w.confirmInTx(ctx, tx, last.Seqno); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "worker: commit sync tx")
	}
	w.prevSnap = last

	if err := w.archiveSyncGroup(ctx, group, visible); err != nil {
		logrus.WithError(err).Warn("worker: archiving SYNC group failed, continuing")
	}

	logrus.WithFields(logrus.Fields{
		"origin": w.Origin, "from": first.Seqno, "to": last.Seqno, "rows": len(visible),
	}).Info("worker: applied SYNC group")
	return nil
}

func (w *RemoteWorker) applyLogRow(ctx context.Context, tx pgx.Tx, r clusterconfig.LogRow) error {
	table, ok := w.Tables(r.TableID)
	if !ok {
		return errors.Errorf("worker: unknown table id %d", r.TableID)
	}
	var sql string
	switch r.CmdType {
	case capture.CmdInsert:
		sql = "INSERT INTO " + table + " " + r.CmdData
	case capture.CmdUpdate:
		sql = "UPDATE " + table + " SET " + r.CmdData
	case capture.CmdDelete:
		sql = "DELETE FROM " + table + " WHERE " + r.CmdData
	default:
		return errors.Errorf("worker: unknown cmdtype %q", r.CmdType)
	}
	if _, err := tx.Exec(ctx, sql); err != nil {
		return err
	}
	return nil
}

func (w *RemoteWorker) confirmInTx(ctx context.Context, tx pgx.Tx, seqno int64) error {
	sql := "INSERT INTO " + quote.QualifiedIdent(w.Schema, "sl_confirm") +
		" (con_origin, con_received, con_seqno, con_timestamp) VALUES ($1, $2, $3, now()) " +
		"ON CONFLICT (con_origin, con_received) DO UPDATE SET con_seqno = GREATEST(" +
		quote.QualifiedIdent(w.Schema, "sl_confirm") + ".con_seqno, EXCLUDED.con_seqno), con_timestamp = now()"
	if _, err := tx.Exec(ctx, sql, int32(w.Origin), int32(w.Receiver), seqno); err != nil {
		return errors.Wrap(err, "worker: upsert sl_confirm")
	}
	return nil
}
