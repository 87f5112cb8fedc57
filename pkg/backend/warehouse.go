// pkg/backend/warehouse.go
package backend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/csvio"
	"github.com/mobilesensing/device-ingress/pkg/model"
)

// WarehouseUploader inserts batches into live warehouse tables, coercing
// batch columns to the shape the destination schema demands. Destination
// schemas are looked up once per table per run through the injected
// SchemaCache.
type WarehouseUploader struct {
	client  WarehouseClient
	cache   *SchemaCache
	timeout time.Duration
	logger  *zap.Logger
}

// NewWarehouseUploader creates a warehouse uploader. The cache is owned by
// the caller so that several uploaders (or a future concurrent controller)
// can share one per-run cache.
func NewWarehouseUploader(client WarehouseClient, cache *SchemaCache, timeout time.Duration, logger *zap.Logger) *WarehouseUploader {
	if cache == nil {
		cache = NewSchemaCache()
	}
	return &WarehouseUploader{
		client:  client,
		cache:   cache,
		timeout: timeout,
		logger:  logger.Named("warehouse-uploader"),
	}
}

// Upload validates the batch against the destination schema, applies the
// schema-driven coercions and inserts the rows. Any failure, including a
// missing destination table, fails this batch only.
func (u *WarehouseUploader) Upload(ctx context.Context, b *model.Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("table %s: upload panicked: %v", b.Table, r)
		}
	}()

	schema, err := u.tableSchema(ctx, b.Table)
	if err != nil {
		return fmt.Errorf("table %s: schema lookup failed: %w", b.Table, err)
	}

	columns := make([]string, 0, len(schema))
	for name := range schema {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	if err := u.coerceToSchema(b, schema, columns); err != nil {
		return fmt.Errorf("table %s: %w", b.Table, err)
	}

	// The warehouse receives exactly the schema's columns. Batch columns
	// the schema does not know (e.g. a transform-produced tzoffset on a
	// table created without one) are dropped, with the schema as the
	// source of truth.
	for _, name := range b.ColumnNames() {
		if _, ok := schema[name]; !ok {
			u.logger.Debug("Dropping column absent from destination schema",
				zap.String("table", b.Table),
				zap.String("column", name))
		}
	}

	rows := make([][]any, b.NumRows())
	for i := range rows {
		row := make([]any, len(columns))
		for j, name := range columns {
			row[j] = b.Column(name).Values[i]
		}
		rows[i] = row
	}

	insertCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	if err := u.client.Insert(insertCtx, b.Table, columns, rows); err != nil {
		return fmt.Errorf("table %s: insert failed: %w", b.Table, err)
	}

	u.logger.Info("Inserted batch",
		zap.String("table", b.Table),
		zap.Int64("pid", b.PID),
		zap.Int("rows", b.NumRows()))
	return nil
}

// tableSchema resolves the destination schema through the cache, querying
// table metadata at most once per table per run.
func (u *WarehouseUploader) tableSchema(ctx context.Context, table string) (map[string]string, error) {
	return u.cache.GetOrFetch(ctx, table, func(ctx context.Context, table string) (map[string]string, error) {
		describeCtx, cancel := context.WithTimeout(ctx, u.timeout)
		defer cancel()
		return u.client.DescribeTable(describeCtx, table)
	})
}

// coerceToSchema reshapes the batch in place to satisfy the destination
// schema:
//   - temporal columns are coerced to timestamps, preserving any source
//     UTC offset; the offsets of the first timezone-aware temporal column
//     populate a schema-defined tzoffset column, overwriting whatever the
//     transform stage produced
//   - non-nullable string columns have nulls replaced with empty strings;
//     nullable string columns keep them
//   - a schema column with no batch counterpart is a schema/batch mismatch
func (u *WarehouseUploader) coerceToSchema(b *model.Batch, schema map[string]string, columns []string) error {
	var schemaOffsets []any
	awareSeen := false

	for _, name := range columns {
		colType := schema[name]
		if !IsTemporalType(colType) {
			continue
		}
		c := b.Column(name)
		if c == nil {
			continue // reported by the presence check below
		}
		if err := coerceTimestamps(c); err != nil {
			return err
		}
		if !awareSeen {
			if offs, aware := columnOffsets(c); aware {
				schemaOffsets = offs
				awareSeen = true
			}
		}
	}

	if _, ok := schema["tzoffset"]; ok && awareSeen {
		if existing := b.Column("tzoffset"); existing != nil {
			existing.Kind = model.KindInt64
			existing.Values = schemaOffsets
		} else if err := b.AddColumn("tzoffset", model.KindInt64, schemaOffsets); err != nil {
			return err
		}
	}

	for _, name := range columns {
		c := b.Column(name)
		if c == nil {
			return fmt.Errorf("schema column %s missing from batch (columns: %v)", name, b.ColumnNames())
		}
		if IsStringType(schema[name]) && !IsNullableType(schema[name]) {
			for i, v := range c.Values {
				if v == nil {
					c.Values[i] = ""
				}
			}
		}
	}

	return nil
}

// coerceTimestamps converts a column's values to time.Time without
// normalizing away the source offset.
func coerceTimestamps(c *model.Column) error {
	if c.Kind == model.KindTimestamp {
		return nil
	}
	for i, v := range c.Values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("column %s: sample value %v (%T) failed timestamp conversion", c.Name, v, v)
		}
		t, err := csvio.ParseTime(s)
		if err != nil {
			return fmt.Errorf("column %s: sample value %q failed timestamp conversion", c.Name, s)
		}
		c.Values[i] = t
	}
	c.Kind = model.KindTimestamp
	return nil
}

// columnOffsets extracts per-row UTC offsets in minutes from a timestamp
// column. aware is true when any row carries a non-zero offset.
func columnOffsets(c *model.Column) ([]any, bool) {
	offsets := make([]any, len(c.Values))
	aware := false
	for i, v := range c.Values {
		t, ok := v.(time.Time)
		if !ok {
			continue
		}
		_, secs := t.Zone()
		offsets[i] = int64(secs / 60)
		if secs != 0 {
			aware = true
		}
	}
	return offsets, aware
}
