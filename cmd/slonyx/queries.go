package main

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/slonyx/slon/internal/capture"
	"github.com/slonyx/slon/internal/clusterconfig"
	"github.com/slonyx/slon/internal/quote"
)

// sqlQueries backs the function-valued fields worker.RemoteWorker,
// syncgen.Generator, and cleanup.Cleaner expect, grounded in the exact
// query shapes getClusterStatus's prepared statements used
// (plan_insert_event/plan_insert_log_1/plan_insert_log_2 read-back
// equivalents).
type sqlQueries struct {
	pool   *pgxpool.Pool
	schema string
}

func newSQLQueries(pool *pgxpool.Pool, schema string) *sqlQueries {
	return &sqlQueries{pool: pool, schema: schema}
}

func (q *sqlQueries) table(name string) string {
	return quote.QualifiedIdent(q.schema, name)
}

func (q *sqlQueries) fetchEvents(ctx context.Context, after int64, limit int) ([]clusterconfig.Event, error) {
	sql := "SELECT ev_origin, ev_seqno, ev_type, extract(epoch from ev_timestamp)::bigint, " +
		"coalesce(ev_minxid,0), coalesce(ev_maxxid,0), coalesce(ev_xip,''), " +
		"ev_data1, ev_data2, ev_data3, ev_data4, ev_data5, ev_data6, ev_data7, ev_data8, ev_data9 " +
		"FROM " + q.table("sl_event") + " WHERE ev_seqno > $1 ORDER BY ev_seqno LIMIT $2"

	rows, err := q.pool.Query(ctx, sql, after, limit)
	if err != nil {
		return nil, errors.Wrap(err, "queries: fetch events")
	}
	defer rows.Close()

	var out []clusterconfig.Event
	for rows.Next() {
		var (
			origin                int32
			seqno, ts, xmin, xmax int64
			evType, xip           string
			data                  [9]*string
		)
		if err := rows.Scan(&origin, &seqno, &evType, &ts, &xmin, &xmax, &xip,
			&data[0], &data[1], &data[2], &data[3], &data[4], &data[5], &data[6], &data[7], &data[8]); err != nil {
			return nil, errors.Wrap(err, "queries: scan event")
		}
		ev := clusterconfig.Event{
			Origin:    clusterconfig.NodeID(origin),
			Seqno:     seqno,
			Type:      evType,
			Timestamp: ts,
			Xmin:      xmin,
			Xmax:      xmax,
			Xip:       parseXip(xip),
		}
		for _, d := range data {
			if d != nil {
				ev.Data = append(ev.Data, *d)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func parseXip(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err == nil {
			out = append(out, v)
		}
	}
	return out
}

// fetchLogRows returns every log row for origin whose xid falls in
// [xidLow, xidHigh), the transaction-id window a SYNC group's snapshot
// delta covers, ordered by log_actionseq across both partitions. xidLow
// of 0 (no previous SYNC snapshot recovered yet) naturally selects from
// the start of the log.
func (q *sqlQueries) fetchLogRows(ctx context.Context, origin clusterconfig.NodeID, xidLow, xidHigh int64) ([]clusterconfig.LogRow, error) {
	var out []clusterconfig.LogRow
	for _, partition := range []struct {
		table string
		id    int
	}{{"sl_log_1", 1}, {"sl_log_2", 2}} {
		sql := "SELECT log_origin, log_xid, log_tableid, log_actionseq, log_cmdtype, log_cmddata " +
			"FROM " + q.table(partition.table) + " WHERE log_origin = $1 AND log_xid >= $2 AND log_xid < $3 " +
			"ORDER BY log_actionseq"
		rows, err := q.pool.Query(ctx, sql, int32(origin), xidLow, xidHigh)
		if err != nil {
			return nil, errors.Wrapf(err, "queries: fetch %s", partition.table)
		}
		for rows.Next() {
			var r clusterconfig.LogRow
			var originID int32
			var cmdtype string
			if err := rows.Scan(&originID, &r.Xid, &r.TableID, &r.ActionSeq, &cmdtype, &r.CmdData); err != nil {
				rows.Close()
				return nil, errors.Wrap(err, "queries: scan log row")
			}
			r.Origin = clusterconfig.NodeID(originID)
			r.PartitionID = partition.id
			if len(cmdtype) > 0 {
				r.CmdType = cmdtype[0]
			}
			out = append(out, r)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ActionSeq < out[j].ActionSeq })
	return out, nil
}

// eventSnapshot loads the (xmin, xmax, xip) recorded on the single
// sl_event row at (origin, seqno), used to recover the previous SYNC's
// snapshot boundary across a worker reconnect or process restart.
func (q *sqlQueries) eventSnapshot(ctx context.Context, origin clusterconfig.NodeID, seqno int64) (clusterconfig.Event, error) {
	sql := "SELECT ev_origin, ev_seqno, ev_type, extract(epoch from ev_timestamp)::bigint, " +
		"coalesce(ev_minxid,0), coalesce(ev_maxxid,0), coalesce(ev_xip,'') " +
		"FROM " + q.table("sl_event") + " WHERE ev_origin = $1 AND ev_seqno = $2"

	var (
		originID     int32
		gotSeqno, ts int64
		xmin, xmax   int64
		evType, xip  string
	)
	row := q.pool.QueryRow(ctx, sql, int32(origin), seqno)
	if err := row.Scan(&originID, &gotSeqno, &evType, &ts, &xmin, &xmax, &xip); err != nil {
		return clusterconfig.Event{}, errors.Wrap(err, "queries: fetch event snapshot")
	}
	return clusterconfig.Event{
		Origin:    clusterconfig.NodeID(originID),
		Seqno:     gotSeqno,
		Type:      evType,
		Timestamp: ts,
		Xmin:      xmin,
		Xmax:      xmax,
		Xip:       parseXip(xip),
	}, nil
}

func (q *sqlQueries) minConfirm(ctx context.Context, origin clusterconfig.NodeID) (int64, error) {
	var floor int64
	sql := "SELECT coalesce(min(con_seqno), 0) FROM " + q.table("sl_confirm") + " WHERE con_origin = $1"
	if err := q.pool.QueryRow(ctx, sql, int32(origin)).Scan(&floor); err != nil {
		return 0, errors.Wrap(err, "queries: min confirm")
	}
	return floor, nil
}

func (q *sqlQueries) logPartitionDrained(ctx context.Context, ratio float64) (bool, error) {
	var count1, count2 int64
	if err := q.pool.QueryRow(ctx, "SELECT count(*) FROM "+q.table("sl_log_1")).Scan(&count1); err != nil {
		return false, errors.Wrap(err, "queries: count sl_log_1")
	}
	if err := q.pool.QueryRow(ctx, "SELECT count(*) FROM "+q.table("sl_log_2")).Scan(&count2); err != nil {
		return false, errors.Wrap(err, "queries: count sl_log_2")
	}
	if count1 == 0 && count2 == 0 {
		return false, nil
	}
	drained := float64(count1+count2) < ratio*float64(count1+count2+1)
	return drained, nil
}

func (q *sqlQueries) snapshot(ctx context.Context) (capture.Snapshot, error) {
	var xmin, xmax int64
	var xip string
	row := q.pool.QueryRow(ctx, "SELECT txid_snapshot_xmin(txid_current_snapshot())::bigint, "+
		"txid_snapshot_xmax(txid_current_snapshot())::bigint, "+
		"array_to_string(txid_snapshot_xip(txid_current_snapshot()), ',')")
	if err := row.Scan(&xmin, &xmax, &xip); err != nil {
		return capture.Snapshot{}, errors.Wrap(err, "queries: snapshot")
	}
	return capture.Snapshot{Xmin: xmin, Xmax: xmax, Xip: parseXip(xip)}, nil
}

func (q *sqlQueries) beginTx(ctx context.Context) (pgx.Tx, error) {
	return q.pool.Begin(ctx)
}

func (q *sqlQueries) exec(ctx context.Context, sql string, args ...any) error {
	_, err := q.pool.Exec(ctx, sql, args...)
	return err
}
