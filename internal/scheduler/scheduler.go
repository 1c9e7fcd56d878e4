// Package scheduler replaces slon.c's wakeup-pipe-plus-select core and
// dbutils.c's connect-mutex-guarded connection creation with native Go
// primitives: a wakeup channel per node and a pgxpool.Pool per
// connection purpose, built behind a single connect lock.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/slonyx/slon/internal/clusterconfig"
)

// Purpose distinguishes the role a pooled connection is held for, since
// a node may be reached once for event origination and separately for
// SYNC-group application.
type Purpose string

const (
	PurposeOrigin Purpose = "origin"
	PurposeRemote Purpose = "remote"
)

type connKey struct {
	node    clusterconfig.NodeID
	purpose Purpose
}

// connectLock serializes pgxpool.New calls across the whole process.
// Nothing in modern pgx requires this the way libpq's
// kerberos-linked PQconnectdb once did, but the discipline is kept
// deliberately: it keeps connection setup easy to reason about under
// the supervisor's restart path, where many goroutines may race to
// reconnect at once.
var connectLock sync.Mutex

// Scheduler owns one connection pool per (node, purpose) and one
// wakeup channel per node, the Go equivalent of the wakeup pipe
// sched_wakeup_node() writes a byte into.
type Scheduler struct {
	mu      sync.Mutex
	conns   map[connKey]*pgxpool.Pool
	wakeups map[clusterconfig.NodeID]chan struct{}
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		conns:   make(map[connKey]*pgxpool.Pool),
		wakeups: make(map[clusterconfig.NodeID]chan struct{}),
	}
}

func (s *Scheduler) wakeupChan(node clusterconfig.NodeID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.wakeups[node]
	if !ok {
		ch = make(chan struct{}, 1)
		s.wakeups[node] = ch
	}
	return ch
}

// WakeupNode signals the goroutine waiting on node's wakeup channel, if
// any. It never blocks: a pending wakeup is coalesced, matching the
// at-most-one-pending-byte behaviour of the original wakeup pipe.
func (s *Scheduler) WakeupNode(node clusterconfig.NodeID) {
	ch := s.wakeupChan(node)
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Msleep blocks until d elapses, node is woken, or ctx is cancelled,
// mirroring sched_msleep's select() over a timeout and the wakeup pipe.
func (s *Scheduler) Msleep(ctx context.Context, node clusterconfig.NodeID, d time.Duration) error {
	ch := s.wakeupChan(node)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitConnection returns the pool for (node, purpose), opening it under
// connectLock on first use, the Go analogue of slon_connectdb's
// mutex-guarded PQconnectdb call.
func (s *Scheduler) WaitConnection(ctx context.Context, node clusterconfig.NodeID, purpose Purpose, connInfo string) (*pgxpool.Pool, error) {
	key := connKey{node: node, purpose: purpose}

	s.mu.Lock()
	if p, ok := s.conns[key]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	connectLock.Lock()
	defer connectLock.Unlock()

	s.mu.Lock()
	if p, ok := s.conns[key]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	pool, err := pgxpool.New(ctx, connInfo)
	if err != nil {
		return nil, errors.Wrapf(err, "scheduler: connect to node %d (%s)", node, purpose)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrapf(err, "scheduler: ping node %d (%s)", node, purpose)
	}

	s.mu.Lock()
	s.conns[key] = pool
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"node": node, "purpose": purpose}).Info("scheduler: connection established")
	return pool, nil
}

// Drop closes and forgets the pool for (node, purpose), so the next
// WaitConnection call reconnects from scratch. Used after a protocol
// violation or a connection the retry backoff has given up on.
func (s *Scheduler) Drop(node clusterconfig.NodeID, purpose Purpose) {
	key := connKey{node: node, purpose: purpose}
	s.mu.Lock()
	p, ok := s.conns[key]
	if ok {
		delete(s.conns, key)
	}
	s.mu.Unlock()
	if ok {
		p.Close()
	}
}

// Shutdown closes every pool, the scheduler's equivalent of
// sched_wait_mainloop returning after every worker thread has joined.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.conns {
		p.Close()
		delete(s.conns, k)
	}
}
