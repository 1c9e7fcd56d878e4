package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func testCols() []Column {
	return []Column{
		{Name: "id", Kind: AttKey},
		{Name: "name", Kind: AttData},
		{Name: "age", Kind: AttData},
	}
}

func TestBuildInsertSkipsNullColumns(t *testing.T) {
	cols := testCols()
	row := Row{"id": strp("1"), "name": strp("'bob'"), "age": nil}
	cmdtype, data := BuildInsert(cols, row)
	assert.Equal(t, byte(CmdInsert), cmdtype)
	assert.Equal(t, "(id,name) values (1,'bob')", data)
}

func TestBuildUpdateOnlyChangedColumns(t *testing.T) {
	cols := testCols()
	old := Row{"id": strp("1"), "name": strp("'bob'"), "age": strp("30")}
	updated := Row{"id": strp("1"), "name": strp("'bob'"), "age": strp("31")}
	cmdtype, data := BuildUpdate(cols, old, updated, nil)
	assert.Equal(t, byte(CmdUpdate), cmdtype)
	assert.Equal(t, "age=31 where id=1", data)
}

func TestBuildUpdateIncludesChangedKeyColumn(t *testing.T) {
	cols := testCols()
	old := Row{"id": strp("1"), "name": strp("'bob'"), "age": strp("30")}
	updated := Row{"id": strp("2"), "name": strp("'bob'"), "age": strp("30")}
	cmdtype, data := BuildUpdate(cols, old, updated, nil)
	assert.Equal(t, byte(CmdUpdate), cmdtype)
	assert.Equal(t, "id=2 where id=1", data)
}

// TestBuildUpdateNoOpSetsFirstKeyColumn is the no-op UPDATE invariant:
// an UPDATE that changes nothing still emits exactly one log row, with
// the first key column set to its own prior value.
func TestBuildUpdateNoOpSetsFirstKeyColumn(t *testing.T) {
	cols := testCols()
	old := Row{"id": strp("1"), "name": strp("'bob'"), "age": strp("30")}
	updated := Row{"id": strp("1"), "name": strp("'bob'"), "age": strp("30")}
	cmdtype, data := BuildUpdate(cols, old, updated, nil)
	assert.Equal(t, byte(CmdUpdate), cmdtype)
	assert.Equal(t, "id=1 where id=1", data)
}

func TestBuildDelete(t *testing.T) {
	cols := testCols()
	old := Row{"id": strp("42")}
	cmdtype, data := BuildDelete(cols, old)
	assert.Equal(t, byte(CmdDelete), cmdtype)
	assert.Equal(t, "id=42", data)
}

func TestValidateRejectsNullKey(t *testing.T) {
	cols := testCols()
	err := Validate(cols, Row{"id": nil})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoKeyColumn)
}

func TestValidateRejectsNoKeyColumns(t *testing.T) {
	cols := []Column{{Name: "name", Kind: AttData}}
	err := Validate(cols, Row{"name": strp("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoKeyColumn)
}

func TestValidateAccepts(t *testing.T) {
	cols := testCols()
	require.NoError(t, Validate(cols, Row{"id": strp("1")}))
}
