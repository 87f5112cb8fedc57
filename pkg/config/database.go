// pkg/config/database.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Warehouse driver names accepted by WAREHOUSE_DRIVER.
const (
	DriverClickHouse = "clickhouse"
	DriverPostgres   = "postgres"
	DriverSnowflake  = "snowflake"
)

// WarehouseConfig holds columnar warehouse connection parameters
type WarehouseConfig struct {
	Driver   string // Default: clickhouse
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Account is only used by the snowflake driver.
	Account string

	// MasterTable holds one row per already-ingested participant and is
	// consulted during update-mode PID resolution.
	MasterTable string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Query timeout
	QueryTimeout time.Duration
}

// LakeConfig holds S3 data-lake and catalog parameters
type LakeConfig struct {
	// BasePath is the S3 URI under which per-table parquet datasets live,
	// e.g. s3://bucket/exports
	BasePath string

	// Database is the Glue catalog database name.
	Database string

	Region string

	// Overwrite recreates a table's dataset instead of appending to it.
	Overwrite bool
}

// LoadWarehouseConfig loads warehouse configuration from environment variables
func LoadWarehouseConfig() (*WarehouseConfig, error) {
	user := os.Getenv("WAREHOUSE_USER")
	if user == "" {
		return nil, errors.New("WAREHOUSE_USER environment variable is required")
	}

	password := os.Getenv("WAREHOUSE_PASSWORD")
	if password == "" {
		return nil, errors.New("WAREHOUSE_PASSWORD environment variable is required")
	}

	database := os.Getenv("WAREHOUSE_DB")
	if database == "" {
		return nil, errors.New("WAREHOUSE_DB environment variable is required")
	}

	driver := getEnv("WAREHOUSE_DRIVER", DriverClickHouse)
	switch driver {
	case DriverClickHouse, DriverPostgres, DriverSnowflake:
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", driver)
	}

	if driver == DriverSnowflake && os.Getenv("WAREHOUSE_ACCOUNT") == "" {
		return nil, errors.New("WAREHOUSE_ACCOUNT environment variable is required for the snowflake driver")
	}

	defaultPort := 9000 // clickhouse native protocol
	if driver == DriverPostgres {
		defaultPort = 5432
	}

	cfg := &WarehouseConfig{
		Driver:      driver,
		Host:        getEnv("WAREHOUSE_HOST", "localhost"),
		Port:        getEnvAsInt("WAREHOUSE_PORT", defaultPort),
		User:        user,
		Password:    password,
		Database:    database,
		Account:     os.Getenv("WAREHOUSE_ACCOUNT"),
		MasterTable: getEnv("WAREHOUSE_MASTER_TABLE", "participants"),

		MaxOpenConns:    getEnvAsInt("WAREHOUSE_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("WAREHOUSE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(getEnvAsInt("WAREHOUSE_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
		ConnMaxIdleTime: time.Duration(getEnvAsInt("WAREHOUSE_CONN_MAX_IDLE_TIME_SECONDS", 600)) * time.Second,
		QueryTimeout:    time.Duration(getEnvAsInt("WAREHOUSE_QUERY_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	return cfg, nil
}

// LoadLakeConfig loads S3 data-lake configuration from environment variables
func LoadLakeConfig() (*LakeConfig, error) {
	basePath := os.Getenv("LAKE_S3_PATH")
	if basePath == "" {
		return nil, errors.New("LAKE_S3_PATH environment variable is required")
	}

	database := os.Getenv("LAKE_DATABASE")
	if database == "" {
		return nil, errors.New("LAKE_DATABASE environment variable is required")
	}

	return &LakeConfig{
		BasePath:  basePath,
		Database:  database,
		Region:    getEnv("AWS_REGION", "us-west-2"),
		Overwrite: getEnv("LAKE_WRITE_MODE", "append") == "overwrite",
	}, nil
}

// ConnectionString returns the driver-specific DSN for the warehouse
func (c *WarehouseConfig) ConnectionString() string {
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database)
	case DriverSnowflake:
		return fmt.Sprintf("%s:%s@%s/%s", c.User, c.Password, c.Account, c.Database)
	default:
		return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s",
			c.User, c.Password, c.Host, c.Port, c.Database)
	}
}
