// pkg/transform/transform_test.go
package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/model"
)

func col(name string, kind model.Kind, values ...any) *model.Column {
	return &model.Column{Name: name, Kind: kind, Values: values}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	assert.NotNil(t, r.Lookup("temp"))
	assert.NotNil(t, r.Lookup("activity"))
	assert.Nil(t, r.Lookup("sleep"))
}

func TestInjectPID(t *testing.T) {
	b := &model.Batch{
		Table:   "sleep",
		Columns: []*model.Column{col("score", model.KindInt64, int64(80), int64(85))},
	}
	require.NoError(t, InjectPID(b, 42))

	assert.Equal(t, int64(42), b.PID)
	pid := b.Column("pid")
	require.NotNil(t, pid)
	assert.Equal(t, model.KindInt64, pid.Kind)
	assert.Equal(t, []any{int64(42), int64(42)}, pid.Values)
}

func TestTempModifier(t *testing.T) {
	b := &model.Batch{
		Table: "temp",
		Columns: []*model.Column{
			col("email", model.KindString, "a@b.c"),
			col("group", model.KindString, "cohort-1"),
			col("name", model.KindString, "Pat"),
			col("participant_id", model.KindInt64, int64(99)),
			col("timestamp", model.KindString, "2024-01-14T22:30:00-08:00"),
			col("value", model.KindFloat64, 36.4),
		},
	}
	require.NoError(t, InjectPID(b, 17))

	out, err := (&TempModifier{logger: zap.NewNop()}).Apply(b)
	require.NoError(t, err)

	assert.Equal(t, []string{"timestamp_utc", "value", "pid"}, out.ColumnNames())

	ts := out.Column("timestamp_utc")
	assert.Equal(t, model.KindTimestamp, ts.Kind)
	got, ok := ts.TimeAt(0)
	require.True(t, ok)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, "2024-01-15T06:30:00Z", got.Format(time.RFC3339))
}

func TestTempModifierMissingTimestamp(t *testing.T) {
	b := &model.Batch{
		Table:   "temp",
		Columns: []*model.Column{col("value", model.KindFloat64, 36.4)},
	}
	_, err := (&TempModifier{logger: zap.NewNop()}).Apply(b)
	require.Error(t, err)
}

func TestTempModifierCorruptTimestamp(t *testing.T) {
	b := &model.Batch{
		Table: "temp",
		Columns: []*model.Column{
			col("timestamp", model.KindString, "2024-01-14T22:30:00-08:00", "not-a-time"),
			col("value", model.KindFloat64, 36.4, 36.5),
		},
	}
	_, err := (&TempModifier{logger: zap.NewNop()}).Apply(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-time")
}

func TestActivityModifierOffsets(t *testing.T) {
	b := &model.Batch{
		Table: "activity",
		Columns: []*model.Column{
			col("summary_date", model.KindString,
				"2024-01-01", "2024-02-01", "2024-03-01"),
			col("day_start", model.KindString,
				"2024-01-01T08:00:00-04:00",
				"2024-02-01T04:00:00+05:30",
				nil),
			col("day_end", model.KindString,
				"2024-01-01T23:59:59-04:00",
				"2024-02-01T23:59:59+05:30",
				nil),
			col("steps", model.KindInt64, int64(1000), int64(2000), int64(3000)),
		},
	}

	out, err := (&ActivityModifier{logger: zap.NewNop()}).Apply(b)
	require.NoError(t, err)

	for _, name := range []string{"summary_date_utc", "day_start_utc", "day_end_utc"} {
		c := out.Column(name)
		require.NotNil(t, c, name)
		assert.Equal(t, model.KindTimestamp, c.Kind, name)
	}
	assert.False(t, out.HasColumn("day_start"))

	tz := out.Column("tzoffset")
	require.NotNil(t, tz)
	assert.Equal(t, model.KindInt64, tz.Kind)
	assert.Equal(t, []any{int64(-240), int64(330), nil}, tz.Values)

	start := out.Column("day_start_utc")
	got, ok := start.TimeAt(0)
	require.True(t, ok)
	assert.Equal(t, "2024-01-01T12:00:00Z", got.Format(time.RFC3339))
}

func TestActivityModifierMissingColumn(t *testing.T) {
	b := &model.Batch{
		Table: "activity",
		Columns: []*model.Column{
			col("day_start", model.KindString, "2024-01-01T08:00:00-04:00"),
			col("day_end", model.KindString, "2024-01-01T23:59:59-04:00"),
		},
	}
	_, err := (&ActivityModifier{logger: zap.NewNop()}).Apply(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary_date")
}

func TestDeidentify(t *testing.T) {
	b := &model.Batch{
		Table: "sleep",
		Columns: []*model.Column{
			col("email", model.KindString, "a@b.c", "d@e.f"),
			col("group", model.KindString, "cohort-1", "cohort-2"),
			col("name", model.KindString, "Pat", "Sam"),
			col("participant_id", model.KindInt64, int64(11), int64(12)),
			col("score", model.KindInt64, int64(80), int64(85)),
		},
	}

	Deidentify(b)

	assert.Equal(t, []any{PlaceholderEmail, PlaceholderEmail}, b.Column("email").Values)
	assert.Equal(t, []any{PlaceholderText, PlaceholderText}, b.Column("group").Values)
	assert.Equal(t, []any{PlaceholderText, PlaceholderText}, b.Column("name").Values)
	assert.Equal(t, []any{PlaceholderInt, PlaceholderInt}, b.Column("participant_id").Values)
	// Non-sensitive columns untouched.
	assert.Equal(t, []any{int64(80), int64(85)}, b.Column("score").Values)
}

func TestDeidentifyIdempotent(t *testing.T) {
	b := &model.Batch{
		Table: "sleep",
		Columns: []*model.Column{
			col("email", model.KindString, "a@b.c"),
			col("participant_id", model.KindInt64, int64(11)),
		},
	}

	Deidentify(b)
	first := [][]any{b.Column("email").Values, b.Column("participant_id").Values}
	Deidentify(b)

	assert.Equal(t, first[0], b.Column("email").Values)
	assert.Equal(t, first[1], b.Column("participant_id").Values)
}

func TestDeidentifyAbsentColumnsStayAbsent(t *testing.T) {
	b := &model.Batch{
		Table:   "sleep",
		Columns: []*model.Column{col("score", model.KindInt64, int64(80))},
	}

	Deidentify(b)

	assert.Equal(t, []string{"score"}, b.ColumnNames())
}
