// cmd/schemagen/main.go

// Command schemagen analyzes a folder of export CSV files and writes one
// schema JSON file per table, ready for cmd/tablegen.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

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
		csvDir = flag.String("csv", "", "folder containing export CSV files (required)")
		outDir = flag.String("out", "schema", "output folder for schema JSON files")
	)
	flag.Parse()

	if *csvDir == "" {
		flag.Usage()
		return errors.New("-csv is required")
	}

	logger, err := logging.NewLogger("info", "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	schemas, err := schemagen.InferFolder(*csvDir, logger)
	if err != nil {
		return err
	}
	if err := schemagen.WriteSchemas(schemas, *outDir); err != nil {
		return err
	}

	logger.Info("Schema generation complete",
		zap.Int("tables", len(schemas)),
		zap.String("out", *outDir))
	return nil
}
