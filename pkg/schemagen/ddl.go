// pkg/schemagen/ddl.go
package schemagen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/model"
)

// Executor runs one DDL statement. Satisfied by the warehouse connector.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// CreateTableSQL renders a schema as a MergeTree CREATE TABLE statement.
// Field defaults render as: the negative-infinity literal for the float
// sentinel, an empty-string literal for any other string default, or the
// literal numeric value for integer defaults.
func CreateTableSQL(database, table string, s *model.TableSchema) string {
	fields := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		def := fmt.Sprintf("    `%s` %s", f.FieldName, f.SuggestedType)
		switch v := f.Default.(type) {
		case nil:
		case string:
			if v == FloatDefault {
				def += " DEFAULT -inf"
			} else {
				def += " DEFAULT ''"
			}
		case int64:
			def += fmt.Sprintf(" DEFAULT %d", v)
		case float64:
			// JSON round-trips integer defaults as float64.
			def += fmt.Sprintf(" DEFAULT %d", int64(v))
		}
		fields = append(fields, def)
	}

	orderBy := "ORDER BY tuple()"
	if len(s.OrderBy) > 0 {
		quoted := make([]string, len(s.OrderBy))
		for i, f := range s.OrderBy {
			quoted[i] = "`" + f + "`"
		}
		orderBy = "ORDER BY (" + strings.Join(quoted, ", ") + ")"
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s\n(\n%s\n)\nENGINE = MergeTree()\n%s",
		database, table, strings.Join(fields, ",\n"), orderBy)
}

// ReadSchemaFile loads one schema JSON file.
func ReadSchemaFile(path string) (*model.TableSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var s model.TableSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}

func writeSchemaFile(s *model.TableSchema, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// CreateTables reads every *_schema.json in schemaDir and creates the
// corresponding warehouse tables. Per-table failures are counted, not
// fatal, so one bad schema file does not block the rest.
func CreateTables(ctx context.Context, exec Executor, database, schemaDir string, logger *zap.Logger) (created, failed int, err error) {
	paths, err := filepath.Glob(filepath.Join(schemaDir, "*_schema.json"))
	if err != nil {
		return 0, 0, err
	}
	if len(paths) == 0 {
		return 0, 0, fmt.Errorf("no schema files found in %s", schemaDir)
	}

	if err := exec.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)); err != nil {
		return 0, 0, fmt.Errorf("creating database %s: %w", database, err)
	}

	for _, path := range paths {
		table := strings.TrimSuffix(filepath.Base(path), "_schema.json")

		schema, err := ReadSchemaFile(path)
		if err != nil {
			logger.Error("Failed to read schema", zap.String("table", table), zap.Error(err))
			failed++
			continue
		}

		ddl := CreateTableSQL(database, table, schema)
		if err := exec.Exec(ctx, ddl); err != nil {
			logger.Error("Failed to create table", zap.String("table", table), zap.Error(err))
			failed++
			continue
		}

		logger.Info("Created table",
			zap.String("table", table),
			zap.Int("fields", len(schema.Fields)))
		created++
	}

	return created, failed, nil
}
