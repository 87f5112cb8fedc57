// pkg/model/batch_test.go
package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchColumnOps(t *testing.T) {
	b := &Batch{
		Table: "temp",
		Columns: []*Column{
			{Name: "timestamp", Kind: KindTimestamp, Values: []any{time.Now(), nil}},
			{Name: "value", Kind: KindFloat64, Values: []any{36.5, 36.7}},
		},
	}

	assert.Equal(t, 2, b.NumRows())
	assert.Equal(t, []string{"timestamp", "value"}, b.ColumnNames())
	assert.True(t, b.HasColumn("value"))
	assert.Nil(t, b.Column("missing"))

	require.NoError(t, b.AddConstantColumn("pid", KindInt64, int64(7)))
	assert.Equal(t, []any{int64(7), int64(7)}, b.Column("pid").Values)

	// Length mismatch and duplicate names are rejected.
	require.Error(t, b.AddColumn("bad", KindString, []any{"x"}))
	require.Error(t, b.AddColumn("pid", KindInt64, []any{int64(1), int64(2)}))

	require.NoError(t, b.RenameColumn("timestamp", "timestamp_utc"))
	assert.True(t, b.HasColumn("timestamp_utc"))
	require.Error(t, b.RenameColumn("timestamp", "x"))

	b.DropColumns("value", "never_there")
	assert.Equal(t, []string{"timestamp_utc", "pid"}, b.ColumnNames())
}

func TestBatchRow(t *testing.T) {
	b := &Batch{
		Columns: []*Column{
			{Name: "a", Kind: KindInt64, Values: []any{int64(1), int64(2)}},
			{Name: "b", Kind: KindString, Values: []any{"x", nil}},
		},
	}

	assert.Equal(t, map[string]any{"a": int64(1), "b": "x"}, b.Row(0))
	assert.Equal(t, map[string]any{"a": int64(2), "b": nil}, b.Row(1))
}

func TestColumnTimeAt(t *testing.T) {
	now := time.Now()
	c := &Column{Name: "ts", Kind: KindTimestamp, Values: []any{now, nil, "oops"}}

	got, ok := c.TimeAt(0)
	assert.True(t, ok)
	assert.True(t, got.Equal(now))

	_, ok = c.TimeAt(1)
	assert.False(t, ok)
	_, ok = c.TimeAt(2)
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "string", KindString.String())
	assert.Equal(t, "int64", KindInt64.String())
	assert.Equal(t, "float64", KindFloat64.String())
	assert.Equal(t, "timestamp", KindTimestamp.String())
}
