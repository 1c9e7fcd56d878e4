// Command slonyx is the replication daemon: one process per node,
// applying events from every provider it subscribes through and
// originating its own events for sets it provides.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/slonyx/slon/internal/watchdog"
)

// version is set by the release build process; left as a constant here
// since this module has no build-time ldflags wiring of its own.
const version = "3.0.0-slonyx"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("slonyx", pflag.ContinueOnError)
	var cfg Config
	cfg.Bind(fs)
	showVersion := fs.BoolP("version", "v", false, "print version and exit")
	showHelp := fs.BoolP("help", "h", false, "print usage and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return -1
	}
	if *showVersion {
		fmt.Println(version)
		return 0
	}
	if *showHelp {
		fmt.Fprintln(os.Stderr, fs.FlagUsages())
		return 1
	}

	if err := loadConfigFile(cfg.ConfigFile, fs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return -1
	}
	if err := cfg.Preflight(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return -1
	}

	configureLogging(cfg.LogLevel)

	pidCleanup, err := watchdog.WritePIDFile(cfg.PIDFile)
	if err != nil {
		logrus.WithError(err).Error("startup: cannot write pid file")
		return -1
	}
	defer pidCleanup()

	go serveMetrics(cfg.MetricsAddr)

	ctx := context.Background()
	daemon, daemonCleanup, err := NewDaemon(ctx, &cfg)
	if err != nil {
		logrus.WithError(err).Error("startup: failed to initialize daemon")
		return -1
	}
	defer daemonCleanup()

	sup := &watchdog.Supervisor{Worker: daemon.Run, AllowInPlaceUpgrade: true}
	return sup.Run(ctx)
}

func configureLogging(level int) {
	switch level {
	case 1:
		logrus.SetLevel(logrus.ErrorLevel)
	case 2:
		logrus.SetLevel(logrus.WarnLevel)
	case 3:
		logrus.SetLevel(logrus.InfoLevel)
	default:
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.WithError(err).Warn("metrics: server stopped")
	}
}
