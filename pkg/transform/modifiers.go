// pkg/transform/modifiers.go
package transform

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/csvio"
	"github.com/mobilesensing/device-ingress/pkg/model"
)

// TempModifier handles the skin-temperature table: participant columns are
// dropped outright (the export duplicates them into every file) and the
// reading timestamp is normalized to UTC.
type TempModifier struct {
	logger *zap.Logger
}

// Apply drops email/group/name/participant_id, converts `timestamp` to a
// UTC timestamp and renames it `timestamp_utc`.
func (m *TempModifier) Apply(b *model.Batch) (*model.Batch, error) {
	b.DropColumns("email", "group", "name", "participant_id")

	ts := b.Column("timestamp")
	if ts == nil {
		return nil, fmt.Errorf("temp table: missing timestamp column")
	}
	if err := convertToUTC(ts); err != nil {
		m.logger.Error("Unable to convert timestamp field", zap.Error(err))
		return nil, err
	}
	if err := b.RenameColumn("timestamp", "timestamp_utc"); err != nil {
		return nil, err
	}

	return b, nil
}

// ActivityModifier handles the daily-activity table: the day boundaries
// carry the participant's local UTC offset, which is preserved as a
// tzoffset column (minutes) before the timestamps are normalized to UTC.
type ActivityModifier struct {
	logger *zap.Logger
}

// Apply extracts per-row offsets from day_start, converts
// summary_date/day_start/day_end to UTC timestamps, renames them with a
// _utc suffix and attaches the tzoffset column. An unparseable offset
// nulls that row's tzoffset only; an unconvertible timestamp rejects the
// whole batch.
func (m *ActivityModifier) Apply(b *model.Batch) (*model.Batch, error) {
	dayStart := b.Column("day_start")
	if dayStart == nil {
		return nil, fmt.Errorf("activity table: missing day_start column")
	}

	offsets := make([]any, len(dayStart.Values))
	for i, v := range dayStart.Values {
		if mins, ok := offsetMinutes(v); ok {
			offsets[i] = mins
		}
	}

	for _, name := range []string{"summary_date", "day_start", "day_end"} {
		c := b.Column(name)
		if c == nil {
			return nil, fmt.Errorf("activity table: missing %s column", name)
		}
		if err := convertToUTC(c); err != nil {
			m.logger.Error("Unable to convert timestamp field", zap.Error(err))
			return nil, err
		}
		if err := b.RenameColumn(name, name+"_utc"); err != nil {
			return nil, err
		}
	}

	if err := b.AddColumn("tzoffset", model.KindInt64, offsets); err != nil {
		return nil, err
	}

	return b, nil
}

// offsetMinutes extracts the signed UTC offset, in minutes, of a value
// parsed (or parseable) as a timestamp-with-offset.
func offsetMinutes(v any) (int64, bool) {
	switch t := v.(type) {
	case time.Time:
		_, secs := t.Zone()
		return int64(secs / 60), true
	case string:
		parsed, err := csvio.ParseTime(t)
		if err != nil {
			return 0, false
		}
		_, secs := parsed.Zone()
		return int64(secs / 60), true
	default:
		return 0, false
	}
}
