package worker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slonyx/slon/internal/clusterconfig"
)

func rowIdentityKey(r clusterconfig.LogRow) string {
	if i := strings.Index(r.CmdData, "where "); i >= 0 {
		return r.CmdData[i+len("where "):]
	}
	return r.CmdData
}

func TestCoalesceByKeyKeepsLastWriter(t *testing.T) {
	rows := []clusterconfig.LogRow{
		{TableID: 1, ActionSeq: 1, CmdData: "v=1 where id=1"},
		{TableID: 1, ActionSeq: 2, CmdData: "v=2 where id=1"},
		{TableID: 1, ActionSeq: 3, CmdData: "x=1 where id=2"},
	}
	out := CoalesceByKey(rows, rowIdentityKey)
	// Coalescing here keys on the "where id=N" clause, so the two
	// id=1 rows collapse to the one with the higher ActionSeq.
	require.Len(t, out, 2)
	seen := map[int64]bool{}
	for _, r := range out {
		seen[r.ActionSeq] = true
	}
	assert.True(t, seen[2])
	assert.True(t, seen[3])
	assert.False(t, seen[1])
}

func TestCoalesceByKeyEmptyKeyNeverMerges(t *testing.T) {
	rows := []clusterconfig.LogRow{
		{TableID: 1, ActionSeq: 1},
		{TableID: 1, ActionSeq: 2},
	}
	out := CoalesceByKey(rows, func(clusterconfig.LogRow) string { return "" })
	assert.Len(t, out, 2)
}

func TestDefaultKeyFunc(t *testing.T) {
	a := clusterconfig.LogRow{TableID: 1, CmdData: "id=1"}
	b := clusterconfig.LogRow{TableID: 1, CmdData: "id=1"}
	c := clusterconfig.LogRow{TableID: 2, CmdData: "id=1"}
	assert.Equal(t, DefaultKeyFunc(a), DefaultKeyFunc(b))
	assert.NotEqual(t, DefaultKeyFunc(a), DefaultKeyFunc(c))
}

// TestDefaultKeyFuncIgnoresChangedValues is the regression this key
// function exists for: two updates to the same row with different SET
// lists must still key identically, or CoalesceByKey never collapses
// them.
func TestDefaultKeyFuncIgnoresChangedValues(t *testing.T) {
	a := clusterconfig.LogRow{TableID: 1, CmdData: "v=1 where id=1"}
	b := clusterconfig.LogRow{TableID: 1, CmdData: "v=2 where id=1"}
	assert.Equal(t, DefaultKeyFunc(a), DefaultKeyFunc(b))
}
