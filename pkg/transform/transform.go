// pkg/transform/transform.go

// Package transform applies per-table field modifiers and the uniform
// de-identification pass to batches before upload. Every batch gets a pid
// column; tables with a registered modifier additionally get their
// timestamp columns normalized and renamed.
package transform

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/csvio"
	"github.com/mobilesensing/device-ingress/pkg/model"
)

// Modifier rewrites one batch for its destination table. A returned error
// rejects the batch: the caller logs it and moves on to the next file, it
// must never abort the run.
type Modifier interface {
	Apply(b *model.Batch) (*model.Batch, error)
}

// Registry maps table names to their modifiers. Tables without an entry
// pass through unmodified (aside from pid injection and de-identification,
// which the pipeline applies to every batch).
type Registry struct {
	modifiers map[string]Modifier
}

// NewRegistry returns the default registry with the temperature and
// activity modifiers registered.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		modifiers: map[string]Modifier{
			"temp":     &TempModifier{logger: logger.Named("temp-modifier")},
			"activity": &ActivityModifier{logger: logger.Named("activity-modifier")},
		},
	}
}

// Lookup returns the modifier registered for a table, or nil.
func (r *Registry) Lookup(table string) Modifier {
	return r.modifiers[table]
}

// InjectPID attaches the constant pid column to a batch, typed int64.
func InjectPID(b *model.Batch, pid int64) error {
	b.PID = pid
	return b.AddConstantColumn("pid", model.KindInt64, pid)
}

// convertToUTC coerces a column to UTC-normalized timestamps in place.
// String values are parsed; values already parsed as timestamps are
// re-expressed in UTC. The first unconvertible value is reported in the
// returned error so the operator can locate the bad export.
func convertToUTC(c *model.Column) error {
	for i, v := range c.Values {
		if v == nil {
			continue
		}
		switch t := v.(type) {
		case time.Time:
			c.Values[i] = t.UTC()
		case string:
			parsed, err := csvio.ParseTime(t)
			if err != nil {
				return fmt.Errorf("column %s: sample value %q failed timestamp conversion", c.Name, t)
			}
			c.Values[i] = parsed.UTC()
		default:
			return fmt.Errorf("column %s: sample value %v (%T) failed timestamp conversion", c.Name, v, v)
		}
	}
	c.Kind = model.KindTimestamp
	return nil
}
