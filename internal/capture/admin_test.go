package capture

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKillBackendRejectsUnrecognisedSignal(t *testing.T) {
	err := KillBackend(context.Background(), int32(os.Getpid()), Signal("BOGUS"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadSignal)
}

// TestKillBackendNullIsExistenceProbe pins down the bug fix called out
// in design notes: signal NULL must perform kill(pid, 0) as a pure
// existence check against a real process, never an unconditional
// bypass.
func TestKillBackendNullIsExistenceProbe(t *testing.T) {
	err := KillBackend(context.Background(), int32(os.Getpid()), SignalNull)
	assert.NoError(t, err, "NULL against our own live pid must succeed as an existence probe")
}

func TestKillBackendNullOnDeadPidFails(t *testing.T) {
	// A pid essentially guaranteed not to exist.
	err := KillBackend(context.Background(), 1<<30, SignalNull)
	assert.Error(t, err, "NULL must not silently succeed against a nonexistent process")
}

func TestDenyAccessSQLIsPureRefusal(t *testing.T) {
	sql := DenyAccessSQL("mycluster")
	assert.Contains(t, sql, "RAISE EXCEPTION")
	assert.NotContains(t, sql, "session_role", "deny-access must not mutate session_role before refusing")
}
