// cmd/ingest/main.go

// Command ingest walks a device export directory tree and loads the
// whitelisted tables into the configured backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/backend"
	"github.com/mobilesensing/device-ingress/pkg/config"
	"github.com/mobilesensing/device-ingress/pkg/connector"
	"github.com/mobilesensing/device-ingress/pkg/ingest"
	"github.com/mobilesensing/device-ingress/pkg/logging"
	"github.com/mobilesensing/device-ingress/pkg/route"
	"github.com/mobilesensing/device-ingress/pkg/transform"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dir    = flag.String("d", "", "path to the participant data directory (required)")
		pid    = flag.Int64("pid", -1, "restrict ingestion to one participant id")
		update = flag.Bool("update", false, "ingest only participants not yet in the master table (warehouse only)")
		yes    = flag.Bool("y", false, "skip the update-mode confirmation prompt")
	)
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		return errors.New("-d is required")
	}

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	logger.Info("Starting device ingestion",
		zap.String("backend", cfg.Backend),
		zap.String("directory", *dir),
		zap.Bool("production", cfg.Production),
		zap.Bool("update_mode", *update))

	whitelist, err := route.LoadWhitelist(cfg.WhitelistPath)
	if err != nil {
		return fmt.Errorf("cannot load whitelist: %w", err)
	}

	ctx := context.Background()
	factory := connector.NewUploaderFactory(cfg, logger)

	var (
		uploader  backend.Uploader
		pidLister ingest.PIDLister
	)
	switch cfg.Backend {
	case config.BackendWarehouse:
		whUploader, conn, err := factory.CreateWarehouseUploader(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		uploader = whUploader
		pidLister = conn
	case config.BackendLake:
		if *update {
			return errors.New("update mode requires the warehouse backend")
		}
		uploader, err = factory.CreateLakeUploader(ctx)
		if err != nil {
			return err
		}
	}

	ingestor := ingest.NewIngestor(
		whitelist,
		transform.NewRegistry(logger),
		uploader,
		!cfg.Production,
		logger,
	)

	var confirm ingest.ConfirmFunc
	if *yes {
		confirm = func([]int64) bool { return true }
	}
	controller := ingest.NewController(ingestor, pidLister, confirm, logger)

	opts := ingest.Options{
		RootDir:    *dir,
		UpdateMode: *update,
	}
	if cfg.Warehouse != nil {
		opts.MasterTable = cfg.Warehouse.MasterTable
	}
	if *pid >= 0 {
		opts.SpecificPID = pid
	}

	outcome, err := controller.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, ingest.ErrDeclined) {
			logger.Info("Aborted by operator")
			return nil
		}
		return err
	}

	outcome.Report(logger)
	if len(outcome.FailedFolders) > 0 {
		return fmt.Errorf("%d folder(s) could not be read", len(outcome.FailedFolders))
	}
	if len(outcome.FailedPIDs()) > 0 {
		return fmt.Errorf("%d participant(s) had failures", len(outcome.FailedPIDs()))
	}
	return nil
}
