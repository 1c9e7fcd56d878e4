// Package cleanup implements the cleanup thread: periodically compute
// the minimum confirmed seqno per origin across all receivers, prune
// everything below that floor from sl_event/sl_log_1/sl_log_2/
// sl_seqlog/sl_confirm, run VACUUM ANALYZE every few cycles, and emit
// SWITCH_LOG once both log partitions have drained past a threshold.
package cleanup

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/slonyx/slon/internal/capture"
	"github.com/slonyx/slon/internal/clusterconfig"
	"github.com/slonyx/slon/internal/quote"
)

// Config bundles the cleanup thread's tunables.
type Config struct {
	CycleInterval  time.Duration // how often the cleanup loop wakes
	VacuumEvery    int           // -c, cleanup cycles per VACUUM ANALYZE
	Schema         string
	SwitchLogRatio float64 // fraction of a partition considered "drained"
}

// Cleaner prunes confirmed history and rotates log partitions.
type Cleaner struct {
	Cfg      Config
	Store    *clusterconfig.Store
	EventLog *capture.EventLog
	BeginTx  func(ctx context.Context) (pgx.Tx, error)
	// Exec runs a statement outside any transaction, required for
	// VACUUM which PostgreSQL refuses to run inside a transaction
	// block.
	Exec func(ctx context.Context, sql string, args ...any) error

	// MinConfirm returns, for origin, the minimum con_seqno across all
	// receivers (including the local node acting as a receiver of its
	// own events, which always confirms instantly).
	MinConfirm func(ctx context.Context, origin clusterconfig.NodeID) (int64, error)

	// LogPartitionDrained reports whether the currently active log
	// partition (1 or 2) has been pruned below SwitchLogRatio of its
	// high-water size, making it safe to rotate.
	LogPartitionDrained func(ctx context.Context) (bool, error)

	cycles int
}

// Run loops until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) error {
	if c.Cfg.CycleInterval <= 0 {
		return errors.New("cleanup: cycle interval must be positive")
	}
	ticker := time.NewTicker(c.Cfg.CycleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.runOnce(ctx); err != nil {
				logrus.WithError(err).Warn("cleanup: cycle failed")
			}
		}
	}
}

func (c *Cleaner) runOnce(ctx context.Context) error {
	c.cycles++

	for _, node := range c.Store.Nodes() {
		floor, err := c.MinConfirm(ctx, node.ID)
		if err != nil {
			return errors.Wrapf(err, "cleanup: min confirm for origin %d", node.ID)
		}
		if err := c.pruneOrigin(ctx, node.ID, floor); err != nil {
			return errors.Wrapf(err, "cleanup: prune origin %d", node.ID)
		}
	}

	if c.Cfg.VacuumEvery > 0 && c.cycles%c.Cfg.VacuumEvery == 0 {
		if err := c.vacuum(ctx); err != nil {
			return err
		}
	}

	drained, err := c.LogPartitionDrained(ctx)
	if err != nil {
		return errors.Wrap(err, "cleanup: check partition drain")
	}
	if drained {
		if err := c.switchLog(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cleaner) pruneOrigin(ctx context.Context, origin clusterconfig.NodeID, floor int64) error {
	tx, err := c.BeginTx(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"sl_event", "sl_log_1", "sl_log_2", "sl_seqlog"} {
		col := "log_origin"
		switch table {
		case "sl_event":
			col = "ev_origin"
		case "sl_seqlog":
			col = "seql_origin"
		}
		seqCol := "log_actionseq"
		switch table {
		case "sl_event":
			seqCol = "ev_seqno"
		case "sl_seqlog":
			seqCol = "seql_ev_seqno"
		}
		sql := "DELETE FROM " + quote.QualifiedIdent(c.Cfg.Schema, table) +
			" WHERE " + col + " = $1 AND " + seqCol + " < $2"
		if _, err := tx.Exec(ctx, sql, int32(origin), floor); err != nil {
			return errors.Wrapf(err, "delete from %s", table)
		}
	}

	sql := "DELETE FROM " + quote.QualifiedIdent(c.Cfg.Schema, "sl_confirm") +
		" WHERE con_origin = $1 AND con_seqno < $2"
	if _, err := tx.Exec(ctx, sql, int32(origin), floor); err != nil {
		return errors.Wrap(err, "delete from sl_confirm")
	}

	return errors.Wrap(tx.Commit(ctx), "commit")
}

func (c *Cleaner) vacuum(ctx context.Context) error {
	for _, table := range []string{"sl_event", "sl_log_1", "sl_log_2", "sl_confirm"} {
		if err := c.Exec(ctx, "VACUUM ANALYZE "+quote.QualifiedIdent(c.Cfg.Schema, table)); err != nil {
			return errors.Wrapf(err, "vacuum %s", table)
		}
	}
	logrus.Info("cleanup: VACUUM ANALYZE complete")
	return nil
}

// switchLog emits a SWITCH_LOG admin event, telling every receiver to
// flip which of sl_log_1/sl_log_2 the capture layer writes to next.
func (c *Cleaner) switchLog(ctx context.Context) error {
	tx, err := c.BeginTx(ctx)
	if err != nil {
		return errors.Wrap(err, "cleanup: begin switch_log tx")
	}
	defer tx.Rollback(ctx)

	seqno, err := c.EventLog.CreateEvent(ctx, tx, int32(c.Store.LocalNodeID), "SWITCH_LOG", nil)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "cleanup: commit switch_log tx")
	}
	logrus.WithField("seqno", seqno).Info("cleanup: emitted SWITCH_LOG")
	return nil
}
