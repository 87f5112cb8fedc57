// pkg/ingest/outcome.go
package ingest

import (
	"sort"

	"go.uber.org/zap"
)

// RunOutcome accumulates per-PID success/failure across all folders of a
// run. It is consulted only for end-of-run reporting; mid-run control flow
// never depends on it.
type RunOutcome struct {
	succeeded map[int64]bool
	failed    map[int64]bool

	// FailedFiles lists every file that failed, with enough context in
	// the logs to locate and re-run it.
	FailedFiles []string

	// FailedFolders lists directories that could not be read at all.
	// These are operational failures, not participant failures, so they
	// never appear in FailedPIDs.
	FailedFolders []string

	FilesProcessed int
}

// NewRunOutcome returns an empty outcome.
func NewRunOutcome() *RunOutcome {
	return &RunOutcome{
		succeeded: make(map[int64]bool),
		failed:    make(map[int64]bool),
	}
}

// Record folds one folder's results into the outcome. A PID counts as
// failed if any of its files failed.
func (o *RunOutcome) Record(res *FolderResult) {
	if res.Err != nil {
		o.FailedFolders = append(o.FailedFolders, res.Dir)
	}
	for _, fr := range res.Succeeded {
		o.FilesProcessed++
		if !o.failed[fr.Identity.PID] {
			o.succeeded[fr.Identity.PID] = true
		}
	}
	for _, fr := range res.Failed {
		o.FilesProcessed++
		o.failed[fr.Identity.PID] = true
		delete(o.succeeded, fr.Identity.PID)
		o.FailedFiles = append(o.FailedFiles, fr.File)
	}
}

// SucceededPIDs returns the fully successful participant ids, sorted.
func (o *RunOutcome) SucceededPIDs() []int64 {
	return sortedKeys(o.succeeded)
}

// FailedPIDs returns the participant ids with at least one failed file,
// sorted, so an operator can retry just those.
func (o *RunOutcome) FailedPIDs() []int64 {
	return sortedKeys(o.failed)
}

// Report logs the end-of-run summary.
func (o *RunOutcome) Report(logger *zap.Logger) {
	logger.Info("Run complete",
		zap.Int("files_processed", o.FilesProcessed),
		zap.Int64s("succeeded_pids", o.SucceededPIDs()),
		zap.Int64s("failed_pids", o.FailedPIDs()),
		zap.Strings("failed_files", o.FailedFiles),
		zap.Strings("failed_folders", o.FailedFolders))
}

func sortedKeys(m map[int64]bool) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
