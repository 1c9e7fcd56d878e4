package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"it's a test",
		`back\slash`,
		"both ' and \\ together",
		"unicode café",
	}
	for _, s := range cases {
		got := Literal(s)
		require.True(t, len(got) >= 2, "literal must be wrapped in quotes: %q", got)
		assert.Equal(t, byte('\''), got[0])
		assert.Equal(t, byte('\''), got[len(got)-1])
		assert.Equal(t, s, unquoteLiteral(t, got))
	}
}

// unquoteLiteral is a test-only inverse of Literal, used purely to
// confirm the doubling rule round-trips.
func unquoteLiteral(t *testing.T, s string) string {
	t.Helper()
	require.True(t, len(s) >= 2)
	body := s[1 : len(s)-1]
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if (c == '\'' || c == '\\') && i+1 < len(body) && body[i+1] == c {
			out = append(out, c)
			i++
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

func TestIdentQuotesWhenNecessary(t *testing.T) {
	assert.Equal(t, "foo", Ident("foo"))
	assert.Equal(t, "foo_bar2", Ident("foo_bar2"))
	assert.Equal(t, `"Foo"`, Ident("Foo"))
	assert.Equal(t, `"2foo"`, Ident("2foo"))
	assert.Equal(t, `"select"`, Ident("select"))
	assert.Equal(t, `"has space"`, Ident("has space"))
	assert.Equal(t, `""`, Ident(""))
}

func TestIdentDoublesEmbeddedQuotes(t *testing.T) {
	assert.Equal(t, `"a""b"`, Ident(`a"b`))
}

func TestQualifiedIdent(t *testing.T) {
	assert.Equal(t, `_cluster.sl_event`, QualifiedIdent("_cluster", "sl_event"))
	assert.Equal(t, `"My Cluster".sl_event`, QualifiedIdent("My Cluster", "sl_event"))
}
