// pkg/ingest/controller.go
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/route"
)

// ErrDeclined is returned when the operator declines the update-mode
// confirmation prompt. No writes have happened at that point.
var ErrDeclined = errors.New("operator declined ingestion")

// PIDLister lists the participant ids already present in a backend table.
// Satisfied by the warehouse connector.
type PIDLister interface {
	DistinctPIDs(ctx context.Context, table string) ([]int64, error)
}

// ConfirmFunc asks the operator to approve ingesting the candidate new
// participant ids. Injected so the controller is testable without a
// terminal; StdinConfirm is the production implementation.
type ConfirmFunc func(pids []int64) bool

// StdinConfirm prints the candidate list and reads a y/n answer from
// standard input.
func StdinConfirm(pids []int64) bool {
	fmt.Printf("About to ingest %d new participant(s): %v\n", len(pids), pids)
	fmt.Print("Proceed? [y/N]: ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// Options configure one controller run.
type Options struct {
	// RootDir is the device export directory containing one folder per
	// participant or export date.
	RootDir string

	// SpecificPID restricts ingestion to one participant.
	SpecificPID *int64

	// UpdateMode ingests only participants not yet present in the master
	// table (warehouse backend only).
	UpdateMode bool

	// MasterTable is the warehouse table consulted in update mode.
	MasterTable string
}

// Controller walks the export directory tree and drives the ingestion
// pipeline once per folder, or once per new PID per folder in update mode.
type Controller struct {
	ingestor  *Ingestor
	pidLister PIDLister
	confirm   ConfirmFunc
	logger    *zap.Logger
}

// NewController creates a controller. pidLister may be nil when update
// mode will not be used; confirm defaults to StdinConfirm.
func NewController(ingestor *Ingestor, pidLister PIDLister, confirm ConfirmFunc, logger *zap.Logger) *Controller {
	if confirm == nil {
		confirm = StdinConfirm
	}
	return &Controller{
		ingestor:  ingestor,
		pidLister: pidLister,
		confirm:   confirm,
		logger:    logger.Named("controller"),
	}
}

// Run executes one ingestion run and returns the aggregated outcome.
// Individual file and PID failures are recorded in the outcome, not
// returned as errors; only configuration and environment problems that
// make further work meaningless abort the run.
func (c *Controller) Run(ctx context.Context, opts Options) (*RunOutcome, error) {
	info, err := os.Stat(opts.RootDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s must be a directory path", opts.RootDir)
	}

	folders, err := c.listFolders(opts.RootDir)
	if err != nil {
		return nil, err
	}

	outcome := NewRunOutcome()

	if opts.UpdateMode {
		newPIDs, err := c.resolveUpdateSet(ctx, folders, opts.MasterTable)
		if err != nil {
			return nil, err
		}
		if len(newPIDs) == 0 {
			c.logger.Info("No new participants found, nothing to ingest")
			return outcome, nil
		}
		if !c.confirm(newPIDs) {
			c.logger.Info("Operator declined, aborting with no writes")
			return nil, ErrDeclined
		}

		for _, folder := range folders {
			for _, pid := range newPIDs {
				pid := pid
				res := c.ingestor.IngestFolder(ctx, folder, &pid)
				outcome.Record(res)
			}
		}
	} else {
		for _, folder := range folders {
			res := c.ingestor.IngestFolder(ctx, folder, opts.SpecificPID)
			outcome.Record(res)
		}
	}

	return outcome, nil
}

// listFolders returns the participant folders under the root, warning on
// stray non-directory entries.
func (c *Controller) listFolders(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	var folders []string
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if !entry.IsDir() {
			c.logger.Warn("Skipping non-directory entry", zap.String("path", path))
			continue
		}
		folders = append(folders, path)
	}
	return folders, nil
}

// resolveUpdateSet computes directory-discovered PIDs minus the PIDs
// already present in the master table. A missing master table is fatal:
// update mode cannot proceed without the lookup.
func (c *Controller) resolveUpdateSet(ctx context.Context, folders []string, masterTable string) ([]int64, error) {
	if c.pidLister == nil {
		return nil, errors.New("update mode requires a warehouse connection")
	}

	discovered := make(map[int64]bool)
	for _, folder := range folders {
		entries, err := os.ReadDir(folder)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", folder, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if id, ok := route.ParseFilename(entry.Name()); ok {
				discovered[id.PID] = true
			}
		}
	}

	discoveredCount := len(discovered)

	existing, err := c.pidLister.DistinctPIDs(ctx, masterTable)
	if err != nil {
		return nil, fmt.Errorf("resolving existing participants from %s: %w", masterTable, err)
	}
	for _, pid := range existing {
		delete(discovered, pid)
	}

	newPIDs := make([]int64, 0, len(discovered))
	for pid := range discovered {
		newPIDs = append(newPIDs, pid)
	}
	sort.Slice(newPIDs, func(i, j int) bool { return newPIDs[i] < newPIDs[j] })

	c.logger.Info("Resolved update set",
		zap.Int("discovered", discoveredCount),
		zap.Int("existing", len(existing)),
		zap.Int64s("new", newPIDs))
	return newPIDs, nil
}
