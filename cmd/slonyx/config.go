package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every flag the daemon accepts, matching the CLI table
// verbatim: -f config file, -a SYNC archive dir, -d log verbosity, -s
// sync interval, -t sync keepalive timeout, -o desired per-subscriber
// apply time, -g max SYNC group size, -c cleanup cycles per vacuum, -p
// pid file, -v version, -h usage.
type Config struct {
	ConfigFile            string
	ArchiveDir            string
	LogLevel              int
	SyncIntervalMS        int
	SyncIntervalTimeoutMS int
	DesiredSyncTimeMS     int
	SyncGroupMaxSize      int
	VacuumEvery           int
	PIDFile               string

	MetricsAddr string

	ClusterName string
	ConnInfo    string
}

// Bind registers every flag on fs.
func (c *Config) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.ConfigFile, "config", "f", "", "configuration file")
	fs.StringVarP(&c.ArchiveDir, "archive-dir", "a", "", "directory to archive applied SYNC groups into")
	fs.IntVarP(&c.LogLevel, "log-level", "d", 2, "log verbosity, 1 (error) through 4 (debug)")
	fs.IntVarP(&c.SyncIntervalMS, "sync-interval", "s", 10000, "sync generator wakeup interval, milliseconds")
	fs.IntVarP(&c.SyncIntervalTimeoutMS, "sync-interval-timeout", "t", 0, "keepalive SYNC timeout, milliseconds (0 disables)")
	fs.IntVarP(&c.DesiredSyncTimeMS, "desired-sync-time", "o", 60000, "desired per-subscriber SYNC apply time, milliseconds")
	fs.IntVarP(&c.SyncGroupMaxSize, "sync-group-max-size", "g", 20, "maximum number of SYNC events grouped into one apply transaction")
	fs.IntVarP(&c.VacuumEvery, "vacuum-every", "c", 3, "cleanup cycles between VACUUM ANALYZE passes")
	fs.StringVarP(&c.PIDFile, "pid-file", "p", "", "write process id to this file")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", ":9541", "address to expose Prometheus metrics on")
	fs.StringVar(&c.ClusterName, "cluster", "", "replication cluster name")
	fs.StringVar(&c.ConnInfo, "conninfo", "", "PostgreSQL connection string for the local node")
}

// Preflight validates flag combinations the way
// internal/source/server.Config.Preflight validates TLS cert/key
// pairing, and clamps a nonzero sync_interval_timeout to at least 2x
// sync_interval.
func (c *Config) Preflight() error {
	if c.ClusterName == "" {
		return errors.New("config: --cluster is required")
	}
	if c.ConnInfo == "" {
		return errors.New("config: --conninfo is required")
	}
	if c.SyncIntervalMS <= 0 {
		return errors.New("config: --sync-interval must be positive")
	}
	if c.SyncIntervalTimeoutMS != 0 && c.SyncIntervalTimeoutMS < 2*c.SyncIntervalMS {
		c.SyncIntervalTimeoutMS = c.SyncIntervalMS * 2
	}
	if c.LogLevel < 1 || c.LogLevel > 4 {
		return errors.Errorf("config: --log-level must be 1-4, got %d", c.LogLevel)
	}
	return nil
}

func (c *Config) syncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMS) * time.Millisecond
}

func (c *Config) syncIntervalTimeout() time.Duration {
	return time.Duration(c.SyncIntervalTimeoutMS) * time.Millisecond
}

func (c *Config) desiredSyncTime() time.Duration {
	return time.Duration(c.DesiredSyncTimeMS) * time.Millisecond
}

// loadConfigFile merges a YAML/TOML/JSON config file (per -f) over the
// flag defaults using viper, the ambient config-file layer paired with
// pflag.
func loadConfigFile(path string, fs *pflag.FlagSet) error {
	if path == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "config: reading %s", path)
	}
	if err := v.BindPFlags(fs); err != nil {
		return errors.Wrap(err, "config: binding flags to config file values")
	}
	for _, key := range v.AllKeys() {
		f := fs.Lookup(key)
		if f == nil || f.Changed || !v.InConfig(key) {
			continue
		}
		if err := fs.Set(key, v.GetString(key)); err != nil {
			return errors.Wrapf(err, "config: applying %s from %s", key, path)
		}
	}
	return nil
}
