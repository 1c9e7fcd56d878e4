package scheduler

import (
	"context"
	"time"
)

// Backoff retries fn, waiting retry (pa_path.pa_connretry, in seconds)
// between attempts, until fn succeeds, ctx is cancelled, or maxAttempts
// is exhausted (0 means unlimited, matching the daemon's default
// behaviour of retrying a transient I/O failure indefinitely).
func Backoff(ctx context.Context, retry time.Duration, maxAttempts int, fn func() error) error {
	var err error
	for attempt := 1; maxAttempts == 0 || attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		select {
		case <-time.After(retry):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
