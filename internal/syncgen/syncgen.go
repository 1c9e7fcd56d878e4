// Package syncgen implements the sync generator: it wakes on a fixed
// interval, emits a SYNC event when there has been replicated activity
// since the last one, and otherwise emits a keepalive SYNC once a
// longer timeout elapses so subscribers can still advance their
// confirmation watermark during quiet periods.
package syncgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/slonyx/slon/internal/capture"
	"github.com/slonyx/slon/internal/clusterconfig"
)

// ActivityCounter reports whether any row has been captured for origin
// since the last SYNC, and resets the counter. Supplied by the capture
// wiring in cmd/slonyx.
type ActivityCounter func(origin clusterconfig.NodeID) (activeSinceLastSync bool)

// SnapshotFunc returns the current (xmin, xmax, xip) visibility
// snapshot for origin, to attach to the SYNC event.
type SnapshotFunc func(ctx context.Context, origin clusterconfig.NodeID) (capture.Snapshot, error)

// Generator owns the sync-interval ticker for one origin node.
type Generator struct {
	Origin   clusterconfig.NodeID
	EventLog *capture.EventLog

	// Interval is sync_interval (-s), the normal wakeup period.
	Interval time.Duration
	// Timeout is sync_interval_timeout (-t), clamped by New to at
	// least 2x Interval when nonzero; zero disables keepalive SYNCs.
	Timeout time.Duration

	Activity ActivityCounter
	Snapshot SnapshotFunc

	// BeginTx opens a transaction on the origin's own connection pool
	// in which the SYNC event row is inserted.
	BeginTx func(ctx context.Context) (pgx.Tx, error)
}

// New returns a Generator with Timeout clamped to at least 2x interval
// when a nonzero timeout is requested: a nonzero timeout below
// interval*2 is raised to interval*2.
func New(origin clusterconfig.NodeID, el *capture.EventLog, interval, timeout time.Duration) *Generator {
	if timeout != 0 && timeout < 2*interval {
		timeout = interval * 2
	}
	return &Generator{Origin: origin, EventLog: el, Interval: interval, Timeout: timeout}
}

// Run wakes every g.Interval until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	if g.Interval <= 0 {
		return errors.New("syncgen: interval must be positive")
	}
	ticker := time.NewTicker(g.Interval)
	defer ticker.Stop()

	var lastSync time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			active := g.Activity != nil && g.Activity(g.Origin)
			due := g.Timeout > 0 && time.Since(lastSync) >= g.Timeout
			if !active && !due {
				continue
			}
			if err := g.emit(ctx); err != nil {
				logrus.WithError(err).Warn("syncgen: failed to emit SYNC event")
				continue
			}
			lastSync = time.Now()
		}
	}
}

func (g *Generator) emit(ctx context.Context) error {
	snap, err := g.Snapshot(ctx, g.Origin)
	if err != nil {
		return errors.Wrap(err, "syncgen: snapshot")
	}
	tx, err := g.BeginTx(ctx)
	if err != nil {
		return errors.Wrap(err, "syncgen: begin tx")
	}
	defer tx.Rollback(ctx)

	seqno, err := g.EventLog.CreateEvent(ctx, tx, int32(g.Origin), "SYNC", &snap)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "syncgen: commit tx")
	}
	logrus.WithFields(logrus.Fields{"origin": g.Origin, "seqno": seqno}).Debug("syncgen: emitted SYNC")
	return nil
}
