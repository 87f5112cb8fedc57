// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backend selection values for Config.Backend.
const (
	BackendLake      = "lake"
	BackendWarehouse = "warehouse"
)

// Config represents the application configuration
type Config struct {
	// Backend selects the upload target: "lake" or "warehouse".
	Backend string

	Warehouse *WarehouseConfig
	Lake      *LakeConfig

	// WhitelistPath is the sidecar file listing ingestable table names.
	WhitelistPath string

	// Production is false in dry-run mode: files are routed and transformed
	// but nothing is uploaded, and every file is reported successful.
	Production bool

	// UploadTimeout bounds each backend network call (metadata query,
	// insert, object upload). A timeout fails the in-flight file only.
	UploadTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Backend:       getEnv("INGRESS_BACKEND", BackendLake),
		WhitelistPath: getEnv("INGRESS_WHITELIST", "whitelist.txt"),
		Production:    getEnv("INGRESS_ENV", "dryrun") == "production",
		UploadTimeout: time.Duration(getEnvAsInt("INGRESS_UPLOAD_TIMEOUT_SECONDS", 120)) * time.Second,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
	}

	switch cfg.Backend {
	case BackendWarehouse:
		whConfig, err := LoadWarehouseConfig()
		if err != nil {
			return nil, errors.New("failed to load warehouse configuration: " + err.Error())
		}
		cfg.Warehouse = whConfig
	case BackendLake:
		lakeConfig, err := LoadLakeConfig()
		if err != nil {
			return nil, errors.New("failed to load lake configuration: " + err.Error())
		}
		cfg.Lake = lakeConfig
	default:
		return nil, fmt.Errorf("unsupported backend %q (expected %q or %q)", cfg.Backend, BackendLake, BackendWarehouse)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendWarehouse:
		if c.Warehouse == nil {
			return errors.New("warehouse configuration is required")
		}
	case BackendLake:
		if c.Lake == nil {
			return errors.New("lake configuration is required")
		}
	default:
		return fmt.Errorf("unsupported backend %q", c.Backend)
	}

	if c.WhitelistPath == "" {
		return errors.New("whitelist path cannot be empty")
	}

	if c.UploadTimeout <= 0 {
		return errors.New("upload timeout must be positive")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
