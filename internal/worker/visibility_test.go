package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slonyx/slon/internal/clusterconfig"
)

func snap(xmin, xmax int64, xip ...int64) clusterconfig.Event {
	return clusterconfig.Event{Xmin: xmin, Xmax: xmax, Xip: xip}
}

func TestVisibleBelowXmin(t *testing.T) {
	assert.True(t, Visible(5, snap(10, 20)))
}

func TestVisibleAtOrAboveXmaxNotVisible(t *testing.T) {
	assert.False(t, Visible(20, snap(10, 20)))
	assert.False(t, Visible(25, snap(10, 20)))
}

func TestVisibleInRangeButInProgress(t *testing.T) {
	assert.False(t, Visible(15, snap(10, 20, 15)))
}

func TestVisibleInRangeAndCommitted(t *testing.T) {
	assert.True(t, Visible(15, snap(10, 20, 16, 17)))
}

func TestSelectVisiblePreservesOrder(t *testing.T) {
	rows := []clusterconfig.LogRow{
		{Xid: 5, ActionSeq: 1},
		{Xid: 15, ActionSeq: 2}, // in progress, excluded
		{Xid: 9, ActionSeq: 3},
	}
	out := SelectVisible(rows, snap(10, 20, 15))
	if assert.Len(t, out, 2) {
		assert.Equal(t, int64(1), out[0].ActionSeq)
		assert.Equal(t, int64(3), out[1].ActionSeq)
	}
}

func TestSelectDeltaExcludesAlreadyVisibleUnderPrev(t *testing.T) {
	prev := snap(10, 15)
	cur := snap(10, 25)
	rows := []clusterconfig.LogRow{
		{Xid: 5, ActionSeq: 1},  // visible under prev already, must be excluded
		{Xid: 18, ActionSeq: 2}, // newly committed between prev and cur
		{Xid: 30, ActionSeq: 3}, // not yet started even under cur
	}
	out := SelectDelta(rows, prev, cur)
	if assert.Len(t, out, 1) {
		assert.Equal(t, int64(2), out[0].ActionSeq)
	}
}

func TestSelectDeltaZeroPrevMatchesSelectVisible(t *testing.T) {
	cur := snap(10, 20, 15)
	rows := []clusterconfig.LogRow{
		{Xid: 5, ActionSeq: 1},
		{Xid: 15, ActionSeq: 2}, // in progress, excluded
		{Xid: 9, ActionSeq: 3},
	}
	assert.Equal(t, SelectVisible(rows, cur), SelectDelta(rows, clusterconfig.Event{}, cur))
}
