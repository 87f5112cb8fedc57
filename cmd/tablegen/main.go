// cmd/tablegen/main.go

// Command tablegen creates warehouse tables from the schema JSON files
// produced by cmd/schemagen.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/config"
	"github.com/mobilesensing/device-ingress/pkg/connector"
	"github.com/mobilesensing/device-ingress/pkg/logging"
	"github.com/mobilesensing/device-ingress/pkg/schemagen"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		schemaDir = flag.String("schema", "", "folder containing *_schema.json files (required)")
	)
	flag.Parse()

	if *schemaDir == "" {
		flag.Usage()
		return errors.New("-schema is required")
	}

	_ = godotenv.Load()

	whCfg, err := config.LoadWarehouseConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger("info", "console")
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()
	conn, err := connector.NewWarehouseConnector(ctx, whCfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	created, failed, err := schemagen.CreateTables(ctx, conn, whCfg.Database, *schemaDir, logger)
	if err != nil {
		return err
	}

	logger.Info("Table creation complete",
		zap.Int("created", created),
		zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d table(s) failed", failed)
	}
	return nil
}
