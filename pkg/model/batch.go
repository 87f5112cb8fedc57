// pkg/model/batch.go
package model

import (
	"fmt"
	"time"
)

// Kind is the inferred primitive type of a batch column.
type Kind int

const (
	KindString Kind = iota
	KindInt64
	KindFloat64
	KindTimestamp
)

// String returns a string representation of the column kind
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Column is one named, typed column of a Batch. Values holds one entry per
// row; a nil entry is a null. Non-nil entries are int64, float64, time.Time
// or string depending on Kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Batch is the in-memory table built from a single source file. Columns are
// ordered; all columns hold the same number of values. A Batch is consumed
// by exactly one upload attempt and then discarded.
type Batch struct {
	Table   string
	PID     int64
	Columns []*Column
}

// NumRows returns the row count of the batch.
func (b *Batch) NumRows() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return len(b.Columns[0].Values)
}

// Column returns the column with the given name, or nil if absent.
func (b *Batch) Column(name string) *Column {
	for _, c := range b.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// HasColumn reports whether a column with the given name exists.
func (b *Batch) HasColumn(name string) bool {
	return b.Column(name) != nil
}

// ColumnNames returns the column names in batch order.
func (b *Batch) ColumnNames() []string {
	names := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		names[i] = c.Name
	}
	return names
}

// AddColumn appends a new column. The value slice length must match the
// batch row count unless the batch is empty of columns.
func (b *Batch) AddColumn(name string, kind Kind, values []any) error {
	if len(b.Columns) > 0 && len(values) != b.NumRows() {
		return fmt.Errorf("column %s has %d values, batch has %d rows", name, len(values), b.NumRows())
	}
	if b.HasColumn(name) {
		return fmt.Errorf("column %s already exists", name)
	}
	b.Columns = append(b.Columns, &Column{Name: name, Kind: kind, Values: values})
	return nil
}

// AddConstantColumn appends a column with every row set to the same value.
func (b *Batch) AddConstantColumn(name string, kind Kind, value any) error {
	values := make([]any, b.NumRows())
	for i := range values {
		values[i] = value
	}
	return b.AddColumn(name, kind, values)
}

// DropColumns removes the named columns if present. Missing names are ignored.
func (b *Batch) DropColumns(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := b.Columns[:0]
	for _, c := range b.Columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	b.Columns = kept
}

// RenameColumn renames a column in place. Renaming a missing column is an error.
func (b *Batch) RenameColumn(from, to string) error {
	c := b.Column(from)
	if c == nil {
		return fmt.Errorf("column %s not found", from)
	}
	c.Name = to
	return nil
}

// Row materializes one row as a name→value map. Used by the backend
// adapters when streaming rows out.
func (b *Batch) Row(i int) map[string]any {
	row := make(map[string]any, len(b.Columns))
	for _, c := range b.Columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// TimeAt returns the i-th value of a timestamp column, with ok=false for
// nulls or non-time values.
func (c *Column) TimeAt(i int) (time.Time, bool) {
	t, ok := c.Values[i].(time.Time)
	return t, ok
}
