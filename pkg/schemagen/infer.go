// pkg/schemagen/infer.go

// Package schemagen analyzes export CSV folders to propose warehouse table
// schemas, and renders those schemas as DDL. It produces and consumes the
// schema file format shared with the table-creation tool: an orderby list
// plus per-column descriptors.
package schemagen

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/csvio"
	"github.com/mobilesensing/device-ingress/pkg/model"
)

// Int32Default is the sentinel default for integer columns.
const Int32Default = int64(math.MinInt32)

// FloatDefault is the sentinel default for floating columns, rendered as
// the negative-infinity literal in DDL.
const FloatDefault = "-inf"

const maxExampleValues = 3

// columnStats accumulates per-column observations across all files of one
// table.
type columnStats struct {
	kind      model.Kind
	kindSet   bool
	examples  []string
	nullCount int
	total     int
	tzAware   bool
}

// InferFolder scans every CSV in a folder, groups files by their leading
// table token, and infers one schema per table.
func InferFolder(dir string, logger *zap.Logger) (map[string]*model.TableSchema, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV files found in %s", dir)
	}

	grouped := make(map[string][]string)
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".csv")
		table := strings.ToLower(strings.ReplaceAll(strings.SplitN(name, "_", 2)[0], "-", "_"))
		grouped[table] = append(grouped[table], path)
	}

	schemas := make(map[string]*model.TableSchema, len(grouped))
	for table, files := range grouped {
		logger.Info("Inferring schema",
			zap.String("table", table),
			zap.Int("files", len(files)))
		schema, err := inferTable(files, logger)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
		schemas[table] = schema
	}

	return schemas, nil
}

func inferTable(files []string, logger *zap.Logger) (*model.TableSchema, error) {
	stats := make(map[string]*columnStats)
	var order []string

	for _, path := range files {
		batch, err := csvio.ReadFile(path)
		if err != nil {
			// Best-effort: a broken sample file should not sink the whole
			// table's inference.
			logger.Error("Skipping unreadable file", zap.String("file", path), zap.Error(err))
			continue
		}
		for _, c := range batch.Columns {
			cs, ok := stats[c.Name]
			if !ok {
				cs = &columnStats{}
				stats[c.Name] = cs
				order = append(order, c.Name)
			}
			cs.observe(c)
		}
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("no readable files")
	}

	schema := &model.TableSchema{}
	var firstTemporal string
	tzAware := false

	for _, name := range order {
		cs := stats[name]
		suggested := cs.suggestedType()
		if strings.Contains(suggested, "DateTime") && firstTemporal == "" {
			firstTemporal = name
		}
		if cs.tzAware {
			tzAware = true
		}
		schema.Fields = append(schema.Fields, model.SchemaField{
			FieldName:      name,
			ExampleValues:  cs.examples,
			HasNulls:       cs.nullCount > 0,
			NullPercentage: cs.nullPercentage(),
			SuggestedType:  suggested,
			Default:        defaultFor(suggested),
		})
	}

	// Every ingested batch carries a participant id.
	schema.Fields = append(schema.Fields, model.SchemaField{
		FieldName:     "pid",
		ExampleValues: []string{"1", "2", "100"},
		SuggestedType: "UInt16",
	})

	if tzAware {
		schema.Fields = append(schema.Fields, model.SchemaField{
			FieldName:     "tzoffset",
			ExampleValues: []string{"0", "60", "-300"},
			SuggestedType: "Int16",
		})
	}

	schema.OrderBy = []string{"pid"}
	if firstTemporal != "" {
		schema.OrderBy = append(schema.OrderBy, firstTemporal)
	}

	return schema, nil
}

func (cs *columnStats) observe(c *model.Column) {
	if !cs.kindSet {
		cs.kind = c.Kind
		cs.kindSet = true
	} else if cs.kind != c.Kind {
		cs.kind = mergeKinds(cs.kind, c.Kind)
	}

	for _, v := range c.Values {
		cs.total++
		if v == nil {
			cs.nullCount++
			continue
		}
		if t, ok := v.(time.Time); ok {
			if _, secs := t.Zone(); secs != 0 {
				cs.tzAware = true
			}
		}
		if len(cs.examples) < maxExampleValues {
			s := formatValue(v)
			if !contains(cs.examples, s) {
				cs.examples = append(cs.examples, s)
			}
		}
	}
}

// mergeKinds widens conflicting per-file kinds: numeric kinds widen to
// float, everything else falls back to string.
func mergeKinds(a, b model.Kind) model.Kind {
	numeric := func(k model.Kind) bool { return k == model.KindInt64 || k == model.KindFloat64 }
	if numeric(a) && numeric(b) {
		return model.KindFloat64
	}
	return model.KindString
}

// suggestedType maps the inferred kind to a warehouse type. Integer width
// is deliberately fixed at Int32: sensor exports rarely exceed it, and a
// failed insert is the signal to widen the column.
func (cs *columnStats) suggestedType() string {
	var base string
	switch cs.kind {
	case model.KindInt64:
		base = "Int32"
	case model.KindFloat64:
		base = "Float64"
	case model.KindTimestamp:
		base = "DateTime"
	default:
		base = "String"
	}
	if cs.nullCount > 0 {
		return "Nullable(" + base + ")"
	}
	return base
}

func (cs *columnStats) nullPercentage() float64 {
	if cs.total == 0 {
		return 0
	}
	return math.Round(float64(cs.nullCount)/float64(cs.total)*100*100) / 100
}

// defaultFor picks the sentinel default for a suggested type.
func defaultFor(suggested string) any {
	switch {
	case strings.Contains(suggested, "String"):
		return ""
	case strings.Contains(suggested, "Int32"):
		return Int32Default
	case strings.Contains(suggested, "Float64"):
		return FloatDefault
	default:
		return nil
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// WriteSchemas writes one <table>_schema.json per inferred schema.
func WriteSchemas(schemas map[string]*model.TableSchema, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", outDir, err)
	}

	tables := make([]string, 0, len(schemas))
	for table := range schemas {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		path := filepath.Join(outDir, table+"_schema.json")
		if err := writeSchemaFile(schemas[table], path); err != nil {
			return err
		}
	}
	return nil
}
