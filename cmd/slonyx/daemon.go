package main

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/slonyx/slon/internal/capture"
	"github.com/slonyx/slon/internal/catalog"
	"github.com/slonyx/slon/internal/cleanup"
	"github.com/slonyx/slon/internal/clusterconfig"
	"github.com/slonyx/slon/internal/listener"
	"github.com/slonyx/slon/internal/scheduler"
	"github.com/slonyx/slon/internal/syncgen"
	"github.com/slonyx/slon/internal/worker"
)

// Daemon owns every long-running goroutine of a running slonyx
// process: the local listener, the sync generator, the cleanup thread,
// and one RemoteWorker per subscribed set provider.
type Daemon struct {
	Cfg      *Config
	Pool     *pgxpool.Pool
	Sched    *scheduler.Scheduler
	Store    *clusterconfig.Store
	EventLog *capture.EventLog
	Queries  *sqlQueries

	tableMu sync.Mutex
	tables  map[int32]string
}

// ProvideDaemon assembles a Daemon from its dependencies, the wire
// provider terminal node.
func ProvideDaemon(cfg *Config, pool *pgxpool.Pool, sched *scheduler.Scheduler, store *clusterconfig.Store, el *capture.EventLog) *Daemon {
	return &Daemon{
		Cfg:      cfg,
		Pool:     pool,
		Sched:    sched,
		Store:    store,
		EventLog: el,
		Queries:  newSQLQueries(pool, catalog.Schema(cfg.ClusterName)),
	}
}

// Run implements watchdog.Worker: it starts every subsystem goroutine
// and blocks until ctx is cancelled or a fatal error occurs, closing
// done once everything has unwound.
func (d *Daemon) Run(ctx context.Context, done chan<- struct{}) error {
	defer close(done)

	if err := d.loadTables(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	lst := d.newListener(gctx)
	g.Go(func() error { return lst.Run(gctx) })

	select {
	case <-lst.Ready():
	case <-gctx.Done():
		return g.Wait()
	}

	gen := d.newSyncGenerator()
	g.Go(func() error { return gen.Run(gctx) })

	cln := d.newCleaner()
	g.Go(func() error { return cln.Run(gctx) })

	for _, sub := range d.Store.Subscriptions(d.Store.LocalNodeID) {
		sub := sub
		w := d.newRemoteWorker(clusterconfig.NodeID(sub.Provider))
		g.Go(func() error { return w.Run(gctx, d.Pool) })
	}

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		logrus.WithError(err).Error("daemon: subsystem failed")
		return err
	}
	return nil
}

func (d *Daemon) newListener(ctx context.Context) *listener.Listener {
	conn, err := pgx.Connect(ctx, d.Cfg.ConnInfo)
	if err != nil {
		logrus.WithError(err).Fatal("daemon: cannot open dedicated LISTEN connection")
	}
	return listener.New(d.Cfg.ClusterName, conn, d.Store, func(ctx context.Context, origin clusterconfig.NodeID, after int64) error {
		events, err := d.Queries.fetchEvents(ctx, after, d.Cfg.SyncGroupMaxSize+1)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if !ev.IsSync() {
				if err := clusterconfig.ApplyAdminEvent(d.Store, ev); err != nil {
					logrus.WithError(err).WithField("seqno", ev.Seqno).Warn("daemon: local admin event apply failed")
				}
			}
			d.Store.SetLastEvent(origin, ev.Seqno)
		}
		return nil
	})
}

func (d *Daemon) newSyncGenerator() *syncgen.Generator {
	gen := syncgen.New(d.Store.LocalNodeID, d.EventLog, d.Cfg.syncInterval(), d.Cfg.syncIntervalTimeout())
	gen.BeginTx = d.Queries.beginTx
	gen.Snapshot = func(ctx context.Context, _ clusterconfig.NodeID) (capture.Snapshot, error) {
		return d.Queries.snapshot(ctx)
	}
	gen.Activity = d.activitySince
	return gen
}

// activitySinceMap tracks, per origin, whether any row has been
// captured since the last SYNC was emitted for it.
var (
	activityMu       sync.Mutex
	activitySinceMap = map[clusterconfig.NodeID]bool{}
)

// NoteActivity marks origin as having captured a row change since its
// last SYNC, so the sync generator emits a non-keepalive SYNC on its
// next wakeup. Nothing in this module calls it, so SYNC events are
// emitted only when the keepalive timeout elapses.
func NoteActivity(origin clusterconfig.NodeID) {
	activityMu.Lock()
	activitySinceMap[origin] = true
	activityMu.Unlock()
}

func (d *Daemon) activitySince(origin clusterconfig.NodeID) bool {
	activityMu.Lock()
	defer activityMu.Unlock()
	active := activitySinceMap[origin]
	activitySinceMap[origin] = false
	return active
}

func (d *Daemon) newCleaner() *cleanup.Cleaner {
	return &cleanup.Cleaner{
		Cfg: cleanup.Config{
			CycleInterval:  d.Cfg.syncInterval() * 6,
			VacuumEvery:    d.Cfg.VacuumEvery,
			Schema:         catalog.Schema(d.Cfg.ClusterName),
			SwitchLogRatio: 0.1,
		},
		Store:      d.Store,
		EventLog:   d.EventLog,
		BeginTx:    d.Queries.beginTx,
		Exec:       d.Queries.exec,
		MinConfirm: d.Queries.minConfirm,
		LogPartitionDrained: func(ctx context.Context) (bool, error) {
			return d.Queries.logPartitionDrained(ctx, 0.1)
		},
	}
}

func (d *Daemon) newRemoteWorker(provider clusterconfig.NodeID) *worker.RemoteWorker {
	return &worker.RemoteWorker{
		Origin:       provider,
		Receiver:     d.Store.LocalNodeID,
		Store:        d.Store,
		Sched:        d.Sched,
		EventLog:     d.EventLog,
		Schema:       catalog.Schema(d.Cfg.ClusterName),
		Tables:       d.resolveTable,
		FetchEvents:        d.Queries.fetchEvents,
		FetchLogRows:       d.Queries.fetchLogRows,
		FetchEventSnapshot: d.Queries.eventSnapshot,
		Cfg: worker.Config{
			SyncGroupMaxSize: d.Cfg.SyncGroupMaxSize,
			DesiredSyncTime:  d.Cfg.desiredSyncTime(),
			ConnectRetryBase: connectRetryFor(d.Store, provider),
			ArchiveDir:       d.Cfg.ArchiveDir,
		},
	}
}

func connectRetryFor(store *clusterconfig.Store, node clusterconfig.NodeID) time.Duration {
	// pa_connretry is per-path, in seconds; fall back to a sane default
	// when no path has been configured yet for this provider.
	p, ok := store.Path(node, store.LocalNodeID)
	if !ok || p.ConnRetry <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.ConnRetry) * time.Second
}

// loadTables populates the table id -> qualified name cache from
// sl_table, the catalog of tables attached to a replication set.
func (d *Daemon) loadTables(ctx context.Context) error {
	sql := "SELECT tab_id, tab_relname, tab_nspname FROM " + d.Queries.table("sl_table")
	rows, err := d.Pool.Query(ctx, sql)
	if err != nil {
		return errors.Wrap(err, "daemon: load sl_table")
	}
	defer rows.Close()

	tables := make(map[int32]string)
	for rows.Next() {
		var id int32
		var rel, ns string
		if err := rows.Scan(&id, &rel, &ns); err != nil {
			return errors.Wrap(err, "daemon: scan sl_table")
		}
		tables[id] = ns + "." + rel
	}
	if err := rows.Err(); err != nil {
		return err
	}

	d.tableMu.Lock()
	d.tables = tables
	d.tableMu.Unlock()
	return nil
}

func (d *Daemon) resolveTable(tableID int32) (string, bool) {
	d.tableMu.Lock()
	defer d.tableMu.Unlock()
	name, ok := d.tables[tableID]
	return name, ok
}
