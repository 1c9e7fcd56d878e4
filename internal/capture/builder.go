// Package capture builds the row-change payloads a Slony-style log
// trigger would emit, and the administrative operations (deny-access,
// kill-backend) that accompany it. The builders are pure functions over
// a column description: this package installs no trigger or PL/pgSQL
// shim, and no other package in the module calls the builders.
package capture

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/slonyx/slon/internal/quote"
)

// AttKind marks whether a captured column participates in row identity
// ("k") or carries replicated data ("v"), mirroring the attkind string
// built by _Slony_I_logTrigger from the table's key column list.
type AttKind byte

const (
	AttKey  AttKind = 'k'
	AttData AttKind = 'v'
)

// Column describes one captured column in table definition order.
type Column struct {
	Name string
	Kind AttKind
}

// Row maps column name to rendered value; a nil pointer represents SQL
// NULL. Row values are pre-rendered SQL literal text (already quoted) so
// that callers control literal formatting once, centrally.
type Row map[string]*string

// EqualFunc reports whether two column values are equal for change
// detection purposes. A nil EqualFunc falls back to byte-wise string
// comparison, matching the behaviour when a type has no registered
// equality operator or is array-typed (spec invariant: array equality is
// always treated as "no operator").
type EqualFunc func(col string, a, b *string) bool

func defaultEqual(_ string, a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// cmdtype byte values matching sl_log_1.log_cmdtype.
const (
	CmdInsert = 'I'
	CmdUpdate = 'U'
	CmdDelete = 'D'
)

// BuildInsert renders "(col,...) values (val,...)" including only
// non-NULL columns, in column order.
func BuildInsert(cols []Column, row Row) (cmdtype byte, cmddata string) {
	var names, values []string
	for _, c := range cols {
		v, ok := row[c.Name]
		if !ok || v == nil {
			continue
		}
		names = append(names, quote.Ident(c.Name))
		values = append(values, *v)
	}
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(strings.Join(names, ","))
	b.WriteString(") values (")
	b.WriteString(strings.Join(values, ","))
	b.WriteByte(')')
	return CmdInsert, b.String()
}

// BuildUpdate renders "col=val,... where key=val and ...". Every
// column whose value changed (per eq) is included in the SET list,
// whether it's a key or data column — a changed key column still needs
// its new value written even though the WHERE clause pins the row by
// its old value. If nothing at all changed, the first key column is
// re-set to its own prior value so the UPDATE still carries a SET
// clause — matching the no-op UPDATE fallback in _Slony_I_logTrigger.
func BuildUpdate(cols []Column, old, new Row, eq EqualFunc) (cmdtype byte, cmddata string) {
	if eq == nil {
		eq = defaultEqual
	}
	var sets []string
	for _, c := range cols {
		ov, nv := old[c.Name], new[c.Name]
		if eq(c.Name, ov, nv) {
			continue
		}
		sets = append(sets, quote.Ident(c.Name)+"="+valueLiteral(nv))
	}
	if len(sets) == 0 {
		for _, c := range cols {
			if c.Kind == AttKey {
				sets = append(sets, quote.Ident(c.Name)+"="+valueLiteral(old[c.Name]))
				break
			}
		}
	}
	var wheres []string
	for _, c := range cols {
		if c.Kind != AttKey {
			continue
		}
		wheres = append(wheres, quote.Ident(c.Name)+"="+valueLiteral(old[c.Name]))
	}
	var b strings.Builder
	b.WriteString(strings.Join(sets, ","))
	b.WriteString(" where ")
	b.WriteString(strings.Join(wheres, " and "))
	return CmdUpdate, b.String()
}

// BuildDelete renders "key=val and ...".
func BuildDelete(cols []Column, old Row) (cmdtype byte, cmddata string) {
	var wheres []string
	for _, c := range cols {
		if c.Kind != AttKey {
			continue
		}
		wheres = append(wheres, quote.Ident(c.Name)+"="+valueLiteral(old[c.Name]))
	}
	return CmdDelete, strings.Join(wheres, " and ")
}

func valueLiteral(v *string) string {
	if v == nil {
		return "NULL"
	}
	return *v
}

// ErrNoKeyColumn is returned by Validate for a row description with no
// key columns at all, or with a NULL key column — a data invariant
// violation per the error taxonomy. BuildDelete and BuildUpdate do not
// check for it themselves.
var ErrNoKeyColumn = errors.New("capture: table has no key columns")

// Validate checks that cols carries at least one key column, and that
// every key column of old is non-NULL — a NULL key column is a fatal
// data invariant violation.
func Validate(cols []Column, old Row) error {
	hasKey := false
	for _, c := range cols {
		if c.Kind != AttKey {
			continue
		}
		hasKey = true
		if v, ok := old[c.Name]; !ok || v == nil {
			return errors.Wrapf(ErrNoKeyColumn, "key column %q is NULL", c.Name)
		}
	}
	if !hasKey {
		return ErrNoKeyColumn
	}
	return nil
}
