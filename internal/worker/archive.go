package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/slonyx/slon/internal/clusterconfig"
)

// archiveSyncGroup writes a durable record of an applied SYNC group to
// Cfg.ArchiveDir, matching -a DIR: one JSON file per group holding the
// origin, the group's events and the log rows applied. Nothing in the
// daemon reads these files back. Writes go through a temp file plus
// rename so a crash mid-write never leaves a half-written archive entry
// behind.
func (w *RemoteWorker) archiveSyncGroup(_ context.Context, group []clusterconfig.Event, rows []clusterconfig.LogRow) error {
	if w.Cfg.ArchiveDir == "" || len(group) == 0 {
		return nil
	}
	last := group[len(group)-1]
	name := strconv.FormatInt(int64(w.Origin), 10) + "-" + strconv.FormatInt(last.Seqno, 10) + ".json"
	final := filepath.Join(w.Cfg.ArchiveDir, name)

	tmp, err := os.CreateTemp(w.Cfg.ArchiveDir, ".sync-*.tmp")
	if err != nil {
		return errors.Wrap(err, "worker: create archive temp file")
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(struct {
		Origin clusterconfig.NodeID    `json:"origin"`
		Events []clusterconfig.Event  `json:"events"`
		Rows   []clusterconfig.LogRow `json:"rows"`
	}{w.Origin, group, rows}); err != nil {
		tmp.Close()
		return errors.Wrap(err, "worker: encode archive")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "worker: close archive temp file")
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return errors.Wrap(err, "worker: rename archive into place")
	}
	return nil
}
