// pkg/ingest/outcome_test.go
package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mobilesensing/device-ingress/pkg/route"
)

func fileResult(pid int64, file string) FileResult {
	return FileResult{File: file, Identity: route.Identity{Table: "temp", PID: pid}}
}

func TestRunOutcomeRecord(t *testing.T) {
	o := NewRunOutcome()

	o.Record(&FolderResult{
		Succeeded: []FileResult{fileResult(1, "a.csv"), fileResult(2, "b.csv")},
	})
	o.Record(&FolderResult{
		Succeeded: []FileResult{fileResult(3, "c.csv")},
		Failed: []FileResult{{
			File:     "d.csv",
			Identity: route.Identity{Table: "temp", PID: 2},
			Err:      errors.New("boom"),
		}},
	})

	// PID 2 succeeded in one folder but failed in another: it counts as
	// failed overall.
	assert.Equal(t, []int64{1, 3}, o.SucceededPIDs())
	assert.Equal(t, []int64{2}, o.FailedPIDs())
	assert.Equal(t, []string{"d.csv"}, o.FailedFiles)
	assert.Equal(t, 4, o.FilesProcessed)
}

func TestRunOutcomeFailureStaysFailed(t *testing.T) {
	o := NewRunOutcome()

	o.Record(&FolderResult{Failed: []FileResult{fileResult(7, "a.csv")}})
	// A later success for the same PID does not clear the failure.
	o.Record(&FolderResult{Succeeded: []FileResult{fileResult(7, "b.csv")}})

	assert.Empty(t, o.SucceededPIDs())
	assert.Equal(t, []int64{7}, o.FailedPIDs())
}

func TestRunOutcomeFolderFailureImplicatesNoPID(t *testing.T) {
	o := NewRunOutcome()

	o.Record(&FolderResult{Dir: "/data/2024-01-14", Err: errors.New("permission denied")})

	assert.Empty(t, o.FailedPIDs())
	assert.Empty(t, o.SucceededPIDs())
	assert.Equal(t, []string{"/data/2024-01-14"}, o.FailedFolders)
	assert.Zero(t, o.FilesProcessed)
}

func TestRunOutcomeEmpty(t *testing.T) {
	o := NewRunOutcome()
	assert.Empty(t, o.SucceededPIDs())
	assert.Empty(t, o.FailedPIDs())
	assert.Zero(t, o.FilesProcessed)
}
