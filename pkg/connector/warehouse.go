// pkg/connector/warehouse.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/config"
)

// WarehouseConnector wraps a long-lived warehouse connection shared across
// all folder iterations of a run. It implements backend.WarehouseClient.
type WarehouseConnector struct {
	db     *sqlx.DB
	cfg    *config.WarehouseConfig
	logger *zap.Logger
}

// NewWarehouseConnector opens and verifies a warehouse connection for the
// configured driver (clickhouse, postgres or snowflake).
func NewWarehouseConnector(ctx context.Context, cfg *config.WarehouseConfig) (*WarehouseConnector, error) {
	logger := zap.L().Named("warehouse-connector")

	logger.Info("Connecting to warehouse",
		zap.String("driver", cfg.Driver),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	var db *sql.DB
	var err error
	switch cfg.Driver {
	case config.DriverClickHouse:
		db = clickhouse.OpenDB(&clickhouse.Options{
			Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
			Auth: clickhouse.Auth{
				Database: cfg.Database,
				Username: cfg.User,
				Password: cfg.Password,
			},
		})
	case config.DriverPostgres:
		db, err = sql.Open("postgres", cfg.ConnectionString())
	case config.DriverSnowflake:
		db, err = sql.Open("snowflake", cfg.ConnectionString())
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s connection: %w", cfg.Driver, err)
	}

	ApplyConnectionSettings(db, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime, cfg.ConnMaxIdleTime)

	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s warehouse: %w", cfg.Driver, err)
	}

	c := &WarehouseConnector{
		db:     sqlx.NewDb(db, cfg.Driver),
		cfg:    cfg,
		logger: logger,
	}

	LogConnectionStats(logger, cfg.Database, db)
	return c, nil
}

// DB returns the underlying database handle.
func (c *WarehouseConnector) DB() *sqlx.DB {
	return c.db
}

// Close closes the connection and releases resources.
func (c *WarehouseConnector) Close() error {
	return c.db.Close()
}

// DescribeTable fetches the table's column name→type mapping from the
// warehouse metadata tables. An unknown table is an error.
func (c *WarehouseConnector) DescribeTable(ctx context.Context, table string) (map[string]string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	var query, arg string
	switch c.cfg.Driver {
	case config.DriverClickHouse:
		query = `SELECT name, type FROM system.columns WHERE database = currentDatabase() AND table = ?`
		arg = table
	case config.DriverSnowflake:
		// Unquoted identifiers are stored uppercase.
		query = `SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ?`
		arg = strings.ToUpper(table)
	default:
		query = `SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = 'public' AND table_name = ?`
		arg = table
	}

	rows, err := c.db.QueryContext(queryCtx, c.db.Rebind(query), arg)
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", table, err)
	}
	defer rows.Close()

	schema := make(map[string]string)
	for rows.Next() {
		var name, colType string
		if err := rows.Scan(&name, &colType); err != nil {
			return nil, fmt.Errorf("scanning metadata for %s: %w", table, err)
		}
		schema[strings.ToLower(name)] = colType
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading metadata for %s: %w", table, err)
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("table %s not found in warehouse", table)
	}

	return schema, nil
}

// Insert appends rows into the table with a prepared statement inside a
// transaction, the batched-insert path all three drivers support.
func (c *WarehouseConnector) Insert(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	query := c.db.Rebind(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	))

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert into %s: %w", table, err)
	}

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting row %d into %s: %w", i, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert into %s: %w", table, err)
	}

	c.logger.Debug("Inserted rows",
		zap.String("table", table),
		zap.Int("rows", len(rows)))
	return nil
}

// DistinctPIDs lists the participant ids already present in a table. Used
// by update-mode PID resolution against the master table.
func (c *WarehouseConnector) DistinctPIDs(ctx context.Context, table string) ([]int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	var pids []int64
	if err := c.db.SelectContext(queryCtx, &pids,
		fmt.Sprintf("SELECT DISTINCT pid FROM %s", table)); err != nil {
		return nil, fmt.Errorf("listing pids in %s: %w", table, err)
	}
	return pids, nil
}

// Exec runs a statement with the configured query timeout. Used by the
// table-creation tool for DDL.
func (c *WarehouseConnector) Exec(ctx context.Context, query string, args ...any) error {
	execCtx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(execCtx, query, args...); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	return nil
}

// Validate verifies the connection is usable.
func (c *WarehouseConnector) Validate() error {
	var one int
	if err := c.db.QueryRow("SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("warehouse validation query failed: %w", err)
	}
	c.logger.Info("Warehouse connection validated",
		zap.String("driver", c.cfg.Driver),
		zap.String("database", c.cfg.Database))
	return nil
}
