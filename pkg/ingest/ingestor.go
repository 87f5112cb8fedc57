// pkg/ingest/ingestor.go

// Package ingest orchestrates the ingestion pipeline: route export file
// names, filter against the whitelist, parse, transform, de-identify and
// upload. One file's failure never aborts a folder, and one folder's
// failure never aborts the run.
package ingest

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/backend"
	"github.com/mobilesensing/device-ingress/pkg/csvio"
	"github.com/mobilesensing/device-ingress/pkg/route"
	"github.com/mobilesensing/device-ingress/pkg/transform"
)

// FileResult records the outcome of one export file.
type FileResult struct {
	File     string
	Identity route.Identity
	Err      error
}

// FolderResult aggregates per-file outcomes for one participant folder.
type FolderResult struct {
	Dir       string
	Succeeded []FileResult
	Failed    []FileResult

	// Err is a folder-level failure (an unreadable directory); it
	// implicates no participant, unlike the per-file failures above.
	Err error
}

// Ingestor runs the pipeline for the files of one folder at a time.
type Ingestor struct {
	whitelist *route.Whitelist
	registry  *transform.Registry
	uploader  backend.Uploader
	dryRun    bool
	logger    *zap.Logger
}

// NewIngestor creates an ingestor. In dry-run mode the uploader is never
// called and every transformed file is reported successful.
func NewIngestor(
	whitelist *route.Whitelist,
	registry *transform.Registry,
	uploader backend.Uploader,
	dryRun bool,
	logger *zap.Logger,
) *Ingestor {
	return &Ingestor{
		whitelist: whitelist,
		registry:  registry,
		uploader:  uploader,
		dryRun:    dryRun,
		logger:    logger.Named("ingestor"),
	}
}

// IngestFolder processes every export file in one folder. A non-nil
// specificPID silently restricts processing to that participant's files.
func (ing *Ingestor) IngestFolder(ctx context.Context, dir string, specificPID *int64) *FolderResult {
	result := &FolderResult{Dir: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		ing.logger.Error("Cannot read folder", zap.String("dir", dir), zap.Error(err))
		result.Err = err
		return result
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		id, ok := route.ParseFilename(entry.Name())
		if !ok {
			ing.logger.Warn("Skipping file with unrecognized name", zap.String("file", path))
			continue
		}

		// Unlisted tables are expected and frequent, so no warning here,
		// unlike the malformed-name case above.
		if !ing.whitelist.Contains(id.Table) {
			continue
		}

		if specificPID != nil && id.PID != *specificPID {
			continue
		}

		if err := ing.ingestFile(ctx, path, id); err != nil {
			ing.logger.Error("Failed to ingest file",
				zap.String("file", path),
				zap.String("table", id.Table),
				zap.Int64("pid", id.PID),
				zap.Error(err))
			result.Failed = append(result.Failed, FileResult{File: path, Identity: id, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, FileResult{File: path, Identity: id})
	}

	return result
}

// ingestFile runs one file through parse → pid injection → modifier →
// de-identification → upload.
func (ing *Ingestor) ingestFile(ctx context.Context, path string, id route.Identity) error {
	batch, err := csvio.ReadFile(path)
	if err != nil {
		return err
	}
	batch.Table = id.Table

	if err := transform.InjectPID(batch, id.PID); err != nil {
		return err
	}

	if mod := ing.registry.Lookup(id.Table); mod != nil {
		if batch, err = mod.Apply(batch); err != nil {
			return err
		}
	}

	transform.Deidentify(batch)

	if ing.dryRun {
		ing.logger.Info("Dry run, skipping upload",
			zap.String("file", path),
			zap.String("table", id.Table),
			zap.Int64("pid", id.PID),
			zap.Int("rows", batch.NumRows()))
		return nil
	}

	return ing.uploader.Upload(ctx, batch)
}
