// Package testutil provides a lightweight test fixture for exercising
// clusterconfig/scheduler/worker code without a live PostgreSQL
// cluster: a composed struct with a cleanup function returned
// alongside it.
package testutil

import (
	"github.com/slonyx/slon/internal/clusterconfig"
	"github.com/slonyx/slon/internal/scheduler"
)

// Fixture bundles the in-memory collaborators most package tests need.
type Fixture struct {
	Sched *scheduler.Scheduler
	Store *clusterconfig.Store
}

// New returns a Fixture for localNode, plus a cleanup func that closes
// every pooled connection the test may have opened.
func New(localNode clusterconfig.NodeID) (*Fixture, func()) {
	sched := scheduler.New()
	store := clusterconfig.New(localNode, sched.WakeupNode)
	return &Fixture{Sched: sched, Store: store}, sched.Shutdown
}
