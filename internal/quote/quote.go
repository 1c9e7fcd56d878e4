// Package quote renders Go values as safe SQL literals and identifiers,
// the way a replication daemon must when it builds DML strings for a
// remote origin whose schema it does not control.
package quote

import "strings"

// reserved holds the PostgreSQL reserved keywords that force an
// identifier to be quoted even when it otherwise matches the bare
// identifier pattern. This is not the full keyword list, only the
// reserved subset — unreserved keywords are valid bare identifiers.
var reserved = map[string]struct{}{
	"all": {}, "analyse": {}, "analyze": {}, "and": {}, "any": {},
	"array": {}, "as": {}, "asc": {}, "asymmetric": {}, "both": {},
	"case": {}, "cast": {}, "check": {}, "collate": {}, "column": {},
	"constraint": {}, "create": {}, "current_catalog": {}, "current_date": {},
	"current_role": {}, "current_time": {}, "current_timestamp": {},
	"current_user": {}, "default": {}, "deferrable": {}, "desc": {},
	"distinct": {}, "do": {}, "else": {}, "end": {}, "except": {},
	"false": {}, "fetch": {}, "for": {}, "foreign": {}, "from": {},
	"grant": {}, "group": {}, "having": {}, "in": {}, "initially": {},
	"intersect": {}, "into": {}, "leading": {}, "limit": {}, "localtime": {},
	"localtimestamp": {}, "not": {}, "null": {}, "offset": {}, "on": {},
	"only": {}, "or": {}, "order": {}, "placing": {}, "primary": {},
	"references": {}, "returning": {}, "select": {}, "session_user": {},
	"some": {}, "symmetric": {}, "table": {}, "then": {}, "to": {},
	"trailing": {}, "true": {}, "union": {}, "unique": {}, "user": {},
	"using": {}, "variadic": {}, "when": {}, "where": {}, "window": {},
	"with": {},
}

// Literal renders s as a single-quoted SQL string literal, doubling
// embedded quote and backslash characters. It mirrors slon_quote_literal.
func Literal(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'', '\\':
			b.WriteRune(r)
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// Ident renders s as a SQL identifier, double-quoting it only when
// necessary: when it doesn't match [a-z_][a-z0-9_]* or collides with a
// reserved keyword. It mirrors slon_quote_identifier /
// _slon_quote_ident.
func Ident(s string) string {
	if needsQuoting(s) {
		var b strings.Builder
		b.Grow(len(s) + 2)
		b.WriteByte('"')
		for _, r := range s {
			if r == '"' {
				b.WriteByte('"')
			}
			b.WriteRune(r)
		}
		b.WriteByte('"')
		return b.String()
	}
	return s
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	if _, ok := reserved[s]; ok {
		return true
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
			// always valid
		case r >= '0' && r <= '9':
			if i == 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// QualifiedIdent joins schema and name, quoting each part independently.
func QualifiedIdent(schema, name string) string {
	return Ident(schema) + "." + Ident(name)
}
