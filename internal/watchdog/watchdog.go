// Package watchdog supervises the daemon's worker goroutines the way
// slon.c's fork+exec parent process supervises its child: trap
// termination signals, drain in-flight work, and either restart in
// place or exit cleanly. A goroutine-based supervisor is sufficient
// here in place of a second OS process, since Go's signal handling and
// goroutine cancellation already give the parent/child isolation the
// original needed a fork for; in-place upgrade is kept as an explicit
// opt-in feature using syscall.Exec, mirroring execvp(main_argv[0], ...)
// on SIGHUP.
package watchdog

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// DrainTimeout bounds how long the supervisor waits for the worker
// goroutine to report it has stopped before forcing an exit, matching
// slon_kill_child's 60-second select()-guarded handshake.
const DrainTimeout = 60 * time.Second

// JoinTimeout is the 20-second value of main()'s SIGALRM-backed join
// timeout. Run does not use it: every drain waits at most DrainTimeout.
const JoinTimeout = 20 * time.Second

// Worker is the long-running daemon body the supervisor starts,
// restarts, and drains. done must close once work has fully stopped
// after ctx is cancelled.
type Worker func(ctx context.Context, done chan<- struct{}) error

// Supervisor runs Worker under signal-driven lifecycle control.
type Supervisor struct {
	Worker Worker

	// AllowInPlaceUpgrade enables SIGHUP to re-exec the current binary
	// with its original argv/env instead of merely restarting the
	// worker goroutine in place — the explicit opt-in feature Design
	// Notes calls for preserving.
	AllowInPlaceUpgrade bool
}

// Run installs signal handlers and blocks until the process should
// exit, returning the exit code to use.
func (s *Supervisor) Run(ctx context.Context) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	done := s.start(workerCtx)

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGQUIT:
				logrus.Warn("watchdog: SIGQUIT received, terminating immediately")
				cancelWorker()
				return -1

			case syscall.SIGINT, syscall.SIGTERM:
				logrus.Info("watchdog: graceful shutdown requested")
				cancelWorker()
				s.waitDrain(done)
				return 0

			case syscall.SIGHUP:
				logrus.Info("watchdog: reload requested")
				cancelWorker()
				s.waitDrain(done)
				if s.AllowInPlaceUpgrade {
					s.execSelf()
					// execSelf only returns on failure; fall through
					// to an in-process restart instead.
				}
				workerCtx, cancelWorker = context.WithCancel(ctx)
				done = s.start(workerCtx)
			}

		case <-done:
			return 0
		}
	}
}

func (s *Supervisor) start(ctx context.Context) chan struct{} {
	done := make(chan struct{})
	go func() {
		if err := s.Worker(ctx, done); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Error("watchdog: worker exited with error")
		}
	}()
	return done
}

func (s *Supervisor) waitDrain(done <-chan struct{}) {
	select {
	case <-done:
	case <-time.After(DrainTimeout):
		logrus.Warn("watchdog: drain timeout exceeded, forcing exit")
	}
}

func (s *Supervisor) execSelf() {
	path, err := os.Executable()
	if err != nil {
		logrus.WithError(err).Error("watchdog: cannot resolve executable path for in-place upgrade")
		return
	}
	if err := syscall.Exec(path, os.Args, os.Environ()); err != nil {
		logrus.WithError(err).Error("watchdog: exec self failed")
	}
}
