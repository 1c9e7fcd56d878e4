package main

import (
	"context"

	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/slonyx/slon/internal/capture"
	"github.com/slonyx/slon/internal/catalog"
	"github.com/slonyx/slon/internal/clusterconfig"
	"github.com/slonyx/slon/internal/scheduler"
)

// Set is the provider set wire uses to assemble Daemon, mirroring the
// teacher's internal/source/logical.Set composition of
// ProvideFactory/ProvideStagingPool/ProvideTargetPool/etc.
var Set = wire.NewSet(
	ProvideLocalPool,
	ProvideScheduler,
	ProvideStore,
	ProvideEventLog,
	ProvideDaemon,
)

// ProvideLocalPool opens and version-checks the connection pool for the
// local node, the daemon's own database.
func ProvideLocalPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.ConnInfo)
	if err != nil {
		return nil, nil, errors.Wrap(err, "provider: open local pool")
	}
	if err := catalog.CheckVersion(ctx, pool, catalog.Schema(cfg.ClusterName)); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

// ProvideScheduler returns the process-wide scheduler.
func ProvideScheduler() *scheduler.Scheduler {
	return scheduler.New()
}

// ProvideStore constructs the runtime configuration store, wired to
// wake the scheduler on every mutation. The local node id is read from
// the database rather than passed in, matching db_getLocalNodeId being
// queried fresh at every daemon startup.
func ProvideStore(ctx context.Context, cfg *Config, pool *pgxpool.Pool, sched *scheduler.Scheduler) (*clusterconfig.Store, error) {
	id, err := catalog.LocalNodeID(ctx, pool, catalog.Schema(cfg.ClusterName))
	if err != nil {
		return nil, err
	}
	return clusterconfig.New(clusterconfig.NodeID(id), sched.WakeupNode), nil
}

// ProvideEventLog returns the event log bound to this cluster's schema.
func ProvideEventLog(cfg *Config) *capture.EventLog {
	return capture.NewEventLog(catalog.Schema(cfg.ClusterName))
}
