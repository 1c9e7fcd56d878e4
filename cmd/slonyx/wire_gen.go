// Hand-written in the form wire generates; the module has no wireinject
// injector file to generate it from.

//go:generate go run github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package main

import (
	"context"
)

// NewDaemon wires together a Daemon, following the same shape as the
// teacher's mylogical.Start: provider functions chained in dependency
// order, with cleanup funcs composed innermost-first.
func NewDaemon(ctx context.Context, cfg *Config) (*Daemon, func(), error) {
	pool, poolCleanup, err := ProvideLocalPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	sched := ProvideScheduler()
	store, err := ProvideStore(ctx, cfg, pool, sched)
	if err != nil {
		poolCleanup()
		return nil, nil, err
	}
	eventLog := ProvideEventLog(cfg)

	daemon := ProvideDaemon(cfg, pool, sched, store, eventLog)

	cleanup := func() {
		sched.Shutdown()
		poolCleanup()
	}
	return daemon, cleanup, nil
}
