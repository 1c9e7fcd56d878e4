package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/slonyx/slon/internal/quote"
)

// LocalNodeID reads the local node identifier from the sl_local_node_id
// sequence, mirroring db_getLocalNodeId's "select last_value from
// sl_local_node_id" query.
func LocalNodeID(ctx context.Context, pool *pgxpool.Pool, schema string) (int32, error) {
	var id int32
	sql := "SELECT last_value::int4 FROM " + quote.QualifiedIdent(schema, "sl_local_node_id")
	if err := pool.QueryRow(ctx, sql).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "catalog: read sl_local_node_id")
	}
	return id, nil
}
