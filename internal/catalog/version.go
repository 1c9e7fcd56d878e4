package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/slonyx/slon/internal/quote"
)

// ErrVersionMismatch is returned when the schema installed in the
// database does not match the version this binary was built against,
// mirroring db_checkSchemaVersion's two independent checks (schema
// version and module version) collapsed into one registry row here.
var ErrVersionMismatch = errors.New("catalog: schema version mismatch")

// CheckVersion verifies the replication schema in pool matches Version
// before any replication loop is allowed to start.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	var got string
	row := pool.QueryRow(ctx, "SELECT reg_value FROM "+quote.QualifiedIdent(schema, "sl_registry")+" WHERE reg_key = 'schema_version'")
	if err := row.Scan(&got); err != nil {
		return errors.Wrap(err, "catalog: read schema_version")
	}
	if got != Version {
		logrus.WithFields(logrus.Fields{"want": Version, "got": got}).Error("catalog: schema version mismatch")
		return errors.Wrapf(ErrVersionMismatch, "schema has %q, binary wants %q", got, Version)
	}
	return nil
}
