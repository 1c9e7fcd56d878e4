package worker

import "github.com/slonyx/slon/internal/clusterconfig"

// Visible reports whether xid was already committed as of the
// (xmin, xmax, xip) snapshot recorded on a SYNC event — the same rule
// Postgres itself uses to decide tuple visibility: anything below xmin
// is definitely committed, anything at or above xmax is definitely not
// yet started, and anything in between is committed unless it appears
// in the in-progress list xip.
func Visible(xid int64, snap clusterconfig.Event) bool {
	if xid < snap.Xmin {
		return true
	}
	if xid >= snap.Xmax {
		return false
	}
	for _, inProgress := range snap.Xip {
		if xid == inProgress {
			return false
		}
	}
	return true
}

// SelectVisible filters rows down to those whose Xid was committed as
// of snap, preserving input order (which callers establish by
// ActionSeq, giving within-group commit order).
func SelectVisible(rows []clusterconfig.LogRow, snap clusterconfig.Event) []clusterconfig.LogRow {
	out := make([]clusterconfig.LogRow, 0, len(rows))
	for _, r := range rows {
		if Visible(r.Xid, snap) {
			out = append(out, r)
		}
	}
	return out
}

// SelectDelta filters rows down to the snapshot delta between prev and
// cur: committed as of cur but not yet committed as of prev. This is
// the set a SYNC group must apply — rows already visible under prev
// were applied and confirmed by an earlier group, so re-selecting them
// under SelectVisible(rows, cur) alone would re-apply them.
//
// Passing the zero Event as prev (no earlier SYNC processed for this
// origin yet) is correct on its own: Visible(xid, zero-value) is always
// false since its Xmax is 0, so every row visible under cur passes,
// exactly matching SelectVisible's behaviour for a worker's first
// group.
func SelectDelta(rows []clusterconfig.LogRow, prev, cur clusterconfig.Event) []clusterconfig.LogRow {
	out := make([]clusterconfig.LogRow, 0, len(rows))
	for _, r := range rows {
		if Visible(r.Xid, cur) && !Visible(r.Xid, prev) {
			out = append(out, r)
		}
	}
	return out
}
