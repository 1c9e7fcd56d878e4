package worker

import (
	"strconv"
	"strings"

	"github.com/slonyx/slon/internal/clusterconfig"
)

// KeyFunc extracts the row-identity key a log row mutates, typically
// the table id plus the rendered key-column portion of its cmddata.
type KeyFunc func(clusterconfig.LogRow) string

// CoalesceByKey implements a "last one wins" reduction over a run of
// log rows belonging to the same SYNC group: when several rows mutate
// the same underlying table row before the group is confirmed, only
// the last one needs to be replayed to reach the same final state,
// since intermediate values are never separately observed once a group
// applies atomically. Rows are expected in ascending ActionSeq order
// (the order FetchLogRows returns them in); ties keep the later
// ActionSeq.
//
// This does not apply across group boundaries — each group still
// commits with its own confirm watermark, so coalescing never removes
// a row some other receiver might still need acknowledged individually.
func CoalesceByKey(rows []clusterconfig.LogRow, key KeyFunc) []clusterconfig.LogRow {
	seenIdx := make(map[string]int, len(rows))
	dest := len(rows)
	for src := len(rows) - 1; src >= 0; src-- {
		k := key(rows[src])
		if k == "" {
			dest--
			rows[dest] = rows[src]
			continue
		}
		if curIdx, found := seenIdx[k]; found {
			if rows[src].ActionSeq > rows[curIdx].ActionSeq {
				rows[curIdx] = rows[src]
			}
			continue
		}
		dest--
		seenIdx[k] = dest
		rows[dest] = rows[src]
	}
	return rows[dest:]
}

// DefaultKeyFunc keys by table id plus the row's key clause: the
// "where k=v and ..." text internal/capture renders for updates and
// deletes, which identifies the underlying row independent of which
// columns happened to change. Two updates to the same row land on the
// same key even when their SET lists differ, which is what makes
// CoalesceByKey's last-write-wins reduction actually coalesce rather
// than only collapse byte-identical rows. Inserts carry no "where"
// clause — each is keyed by its full cmddata, since two inserts never
// target the same existing row within a group.
func DefaultKeyFunc(r clusterconfig.LogRow) string {
	return keyString(r)
}

func keyString(r clusterconfig.LogRow) string {
	const sep = "\x00"
	id := strconv.FormatInt(int64(r.TableID), 10)
	if idx := strings.Index(r.CmdData, " where "); idx >= 0 {
		return id + sep + r.CmdData[idx+len(" where "):]
	}
	return id + sep + r.CmdData
}
