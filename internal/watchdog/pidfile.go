package watchdog

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// WritePIDFile writes the current process id to path, matching -p PATH.
// It returns a cleanup func that removes the file; callers should defer
// it so a graceful shutdown leaves no stale pid file behind.
func WritePIDFile(path string) (cleanup func(), err error) {
	if path == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "watchdog: pid file %s already exists or is unwritable", path)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return nil, errors.Wrap(err, "watchdog: write pid file")
	}
	return func() { _ = os.Remove(path) }, nil
}
