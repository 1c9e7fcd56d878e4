package capture

import (
	"context"
	"fmt"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Signal names the replication daemon accepts for KillBackend. Slony's
// original _Slony_I_killBackend only ever recognised these two spellings.
type Signal string

const (
	SignalNull Signal = "NULL"
	SignalTerm Signal = "TERM"
)

// ErrBadSignal is returned for any signal name other than NULL or TERM.
// The original C implementation compared signal names with a memcmp
// call that was accidentally given a length of 0, so every comparison
// short-circuited to "equal" and any string was silently accepted as
// "NULL". This reimplementation compares the full signal name instead.
var ErrBadSignal = errors.New("capture: unrecognised signal name")

// KillBackend sends sig to the backend process pid. SignalNull performs
// a pure existence probe (kill(pid, 0)) rather than bypassing the check,
// and SignalTerm sends SIGTERM. Any other signal name is rejected.
// Callers must already hold superuser-equivalent authorization; this
// function does not itself check privilege, since that check happens at
// the connection/session layer before KillBackend is ever called.
func KillBackend(ctx context.Context, pid int32, sig Signal) error {
	switch sig {
	case SignalNull:
		if err := syscall.Kill(int(pid), 0); err != nil {
			return errors.Wrapf(err, "kill(%d, 0) existence probe failed", pid)
		}
		return nil
	case SignalTerm:
		if err := syscall.Kill(int(pid), syscall.SIGTERM); err != nil {
			return errors.Wrapf(err, "kill(%d, SIGTERM) failed", pid)
		}
		logrus.WithField("pid", pid).Warn("capture: sent SIGTERM to backend")
		return nil
	default:
		return errors.Wrapf(ErrBadSignal, "got %q, want NULL or TERM", sig)
	}
}

// DenyAccessSQL renders the body of the BEFORE-row trigger installed on
// every replicated table at a subscriber: it unconditionally refuses
// the write. The original C function mutated session_role as dead code
// before raising the error; this rendering only ever raises the error.
func DenyAccessSQL(clusterName string) string {
	return fmt.Sprintf(
		"RAISE EXCEPTION 'Slony-I: this table is replicated and cannot be modified directly on a subscriber node in cluster %s'",
		clusterName)
}

// ErrDenied is the sentinel a deny-access trigger shim returns to the
// Go side when a direct write against a subscriber table is rejected.
var ErrDenied = errors.New("capture: direct write to replicated table denied")
