package capture

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/slonyx/slon/internal/catalog"
	"github.com/slonyx/slon/internal/quote"
)

// EventLog issues sl_event rows under the exclusive per-origin lock that
// gives seqno its strictly-monotonic, commit-order-preserving guarantee.
// It is the Go-side equivalent of _Slony_I_createEvent plus the
// SPI-prepared-statement cache getClusterStatus kept per cluster.
type EventLog struct {
	Schema string
}

// NewEventLog returns an EventLog bound to the replication schema
// namespace (the PostgreSQL schema the cluster's catalog objects live
// in, e.g. "_mycluster").
func NewEventLog(schema string) *EventLog {
	return &EventLog{Schema: schema}
}

func (e *EventLog) table(name string) string {
	return quote.QualifiedIdent(e.Schema, name)
}

// Snapshot is the (xmin, xmax, xip) transaction visibility snapshot
// recorded alongside SYNC and ENABLE_SUBSCRIPTION events, used by
// remote workers to reconstruct commit order from the otherwise
// unordered sl_log rows.
type Snapshot struct {
	Xmin int64
	Xmax int64
	Xip  []int64
}

func (s Snapshot) xipList() string {
	parts := make([]string, len(s.Xip))
	for i, x := range s.Xip {
		parts[i] = int64ToString(x)
	}
	return strings.Join(parts, ",")
}

func int64ToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

// CreateEvent inserts one sl_event row for originNodeID, taking the
// exclusive table lock that gives event numbering its total order, then
// returns the assigned seqno. extraArgs are stored verbatim in the
// event's ev_data1..ev_data9 columns (event-type specific payload), the
// same layout _Slony_I_createEvent uses.
func (e *EventLog) CreateEvent(ctx context.Context, tx pgx.Tx, originNodeID int32, evType string, snap *Snapshot, extraArgs ...string) (seqno int64, err error) {
	start := time.Now()
	defer func() {
		catalog.EventCreateDuration.WithLabelValues(evType).Observe(time.Since(start).Seconds())
		if err == nil {
			catalog.EventsCreated.WithLabelValues(evType).Inc()
		}
	}()

	if _, err = tx.Exec(ctx, "LOCK TABLE "+e.table("sl_event")+" IN EXCLUSIVE MODE"); err != nil {
		return 0, errors.Wrap(err, "capture: lock sl_event")
	}

	cols := []string{"ev_origin", "ev_seqno", "ev_timestamp", "ev_type"}
	vals := []string{int64ToString(int64(originNodeID)), "nextval(" + quote.Literal(e.table("sl_event_seq")) + ")", "now()", quote.Literal(evType)}

	if snap != nil {
		cols = append(cols, "ev_minxid", "ev_maxxid", "ev_xip")
		vals = append(vals, int64ToString(snap.Xmin), int64ToString(snap.Xmax), quote.Literal(snap.xipList()))
	}
	for i, a := range extraArgs {
		if i >= 9 {
			break
		}
		cols = append(cols, dataColumn(i+1))
		vals = append(vals, quote.Literal(a))
	}

	insertSQL := "INSERT INTO " + e.table("sl_event") + " (" + strings.Join(cols, ",") + ") VALUES (" + strings.Join(vals, ",") + ")"
	if _, err = tx.Exec(ctx, insertSQL); err != nil {
		return 0, errors.Wrap(err, "capture: insert sl_event")
	}

	row := tx.QueryRow(ctx, "SELECT currval("+quote.Literal(e.table("sl_event_seq"))+")")
	if err = row.Scan(&seqno); err != nil {
		return 0, errors.Wrap(err, "capture: read assigned seqno")
	}

	if evType == "SYNC" || evType == "ENABLE_SUBSCRIPTION" {
		if err = e.recordSequences(ctx, tx, originNodeID, seqno); err != nil {
			return 0, err
		}
	}

	logrus.WithFields(logrus.Fields{"origin": originNodeID, "seqno": seqno, "type": evType}).Debug("capture: event created")
	return seqno, nil
}

func dataColumn(i int) string {
	return "ev_data" + int64ToString(int64(i))
}

// recordSequences snapshots every replicated sequence's last_value into
// sl_seqlog for this event, matching plan_record_sequences.
func (e *EventLog) recordSequences(ctx context.Context, tx pgx.Tx, originNodeID int32, seqno int64) error {
	sql := "INSERT INTO " + e.table("sl_seqlog") +
		" (seql_seqid, seql_origin, seql_ev_seqno, seql_last_value) " +
		"SELECT sq_seqid, " + int64ToString(int64(originNodeID)) + ", " + int64ToString(seqno) +
		", sq.last_value FROM " + e.table("sl_sequence") + " sl, LATERAL (" +
		"SELECT last_value FROM pg_sequences WHERE schemaname || '.' || sequencename = sl.seq_reloid::regclass::text) sq"
	if _, err := tx.Exec(ctx, sql); err != nil {
		return errors.Wrap(err, "capture: record sequence snapshot")
	}
	return nil
}
