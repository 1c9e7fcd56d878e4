// Package listener implements the local listener thread: it holds the
// cluster's well-known singleton lock, issues LISTEN on the cluster's
// event channel, and feeds newly committed local events into
// clusterconfig. Polling remains available as a fallback transport for
// a deployment that disables async notification delivery (e.g. through
// certain connection poolers).
package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/slonyx/slon/internal/clusterconfig"
	"github.com/slonyx/slon/internal/quote"
)

// PollInterval bounds how long the listener waits between notification
// checks when operating in polling mode.
const PollInterval = 2 * time.Second

// EventFetcher loads events for origin past afterSeqno and applies them
// to the runtime configuration; supplied by the caller (worker/cleanup
// wiring) rather than imported directly, to keep this package free of a
// dependency on the worker state machine.
type EventFetcher func(ctx context.Context, origin clusterconfig.NodeID, afterSeqno int64) error

// Listener runs the singleton-checked LISTEN loop for one cluster.
type Listener struct {
	Cluster string
	Conn    *pgx.Conn
	Store   *clusterconfig.Store
	Fetch   EventFetcher
	Polling bool

	ready chan struct{}
}

// New returns a Listener bound to an already-open dedicated connection
// (LISTEN requires holding a single connection across notifications, so
// this is not pool-backed the way other components are).
func New(cluster string, conn *pgx.Conn, store *clusterconfig.Store, fetch EventFetcher) *Listener {
	return &Listener{Cluster: cluster, Conn: conn, Store: store, Fetch: fetch, ready: make(chan struct{})}
}

// Ready is closed once the singleton check has passed and LISTEN is
// active, mirroring main()'s wait on slon_wait_listen_cond before
// calling rtcfg_doActivate.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// channelName derives the cluster event channel name, "<cluster>_Event":
// the bare cluster name, without the leading underscore of the catalog
// schema name.
func (l *Listener) channelName() string {
	return fmt.Sprintf("%s_Event", l.Cluster)
}

// Run performs the singleton check, starts listening, and loops until
// ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	locked, err := l.acquireSingleton(ctx)
	if err != nil {
		return err
	}
	if !locked {
		return errors.New("listener: another slonyx daemon already holds the cluster lock")
	}

	if _, err := l.Conn.Exec(ctx, "LISTEN "+quote.Ident(l.channelName())); err != nil {
		return errors.Wrap(err, "listener: LISTEN")
	}

	close(l.ready)
	logrus.WithField("cluster", l.Cluster).Info("listener: singleton acquired, listening for events")

	if l.Polling {
		return l.pollLoop(ctx)
	}
	return l.notifyLoop(ctx)
}

// acquireSingleton takes a cluster-scoped advisory lock so that at most
// one daemon process services a given cluster at a time, mirroring the
// well-known-name check the original performs before LISTEN.
func (l *Listener) acquireSingleton(ctx context.Context) (bool, error) {
	var locked bool
	row := l.Conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", l.Cluster)
	if err := row.Scan(&locked); err != nil {
		return false, errors.Wrap(err, "listener: singleton check")
	}
	return locked, nil
}

func (l *Listener) notifyLoop(ctx context.Context) error {
	for {
		n, err := l.Conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "listener: WaitForNotification")
		}
		l.handleWake(ctx, n.Payload)
	}
}

func (l *Listener) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.handleWake(ctx, "")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Listener) handleWake(ctx context.Context, _ string) {
	origin := l.Store.LocalNodeID
	after := l.Store.LastEvent(origin)
	if err := l.Fetch(ctx, origin, after); err != nil {
		logrus.WithError(err).Warn("listener: fetching local events failed")
	}
}
