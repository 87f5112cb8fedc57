// pkg/ingest/ingestor_test.go
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mobilesensing/device-ingress/pkg/model"
	"github.com/mobilesensing/device-ingress/pkg/route"
	"github.com/mobilesensing/device-ingress/pkg/transform"
)

type uploadRecord struct {
	Table string
	PID   int64
	Rows  int
}

// recordingUploader captures every upload and optionally fails whole tables.
type recordingUploader struct {
	calls      []uploadRecord
	failTables map[string]bool
}

func (r *recordingUploader) Upload(_ context.Context, b *model.Batch) error {
	if r.failTables[b.Table] {
		return errors.New("simulated backend failure")
	}
	r.calls = append(r.calls, uploadRecord{Table: b.Table, PID: b.PID, Rows: b.NumRows()})
	return nil
}

func writeWhitelist(t *testing.T, tables ...string) *route.Whitelist {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whitelist.txt")
	var content string
	for _, table := range tables {
		content += table + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	wl, err := route.LoadWhitelist(path)
	require.NoError(t, err)
	return wl
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const tempCSV = "email,group,name,participant_id,timestamp,value\n" +
	"a@b.c,cohort-1,Pat,99,2024-01-14T22:30:00-08:00,36.4\n"

const tempCSVCorrupt = "email,group,name,participant_id,timestamp,value\n" +
	"a@b.c,cohort-1,Pat,99,not-a-time,36.4\n"

const sleepCSV = "score,duration\n80,28800\n"

func newTestIngestor(wl *route.Whitelist, up *recordingUploader, dryRun bool) *Ingestor {
	return NewIngestor(wl, transform.NewRegistry(zap.NewNop()), up, dryRun, zap.NewNop())
}

func TestIngestFolderPipeline(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "temp_20240114_oura_17.csv", tempCSV)

	up := &recordingUploader{}
	ing := newTestIngestor(writeWhitelist(t, "temp"), up, false)

	res := ing.IngestFolder(context.Background(), dir, nil)

	require.Empty(t, res.Failed)
	require.Len(t, res.Succeeded, 1)
	assert.Equal(t, "temp", res.Succeeded[0].Identity.Table)
	assert.Equal(t, int64(17), res.Succeeded[0].Identity.PID)

	require.Len(t, up.calls, 1)
	assert.Equal(t, uploadRecord{Table: "temp", PID: 17, Rows: 1}, up.calls[0])
}

func TestIngestFolderSkipsNonWhitelistedTables(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readiness_20240114_oura_17.csv", sleepCSV)
	writeFile(t, dir, "notes.txt", "not an export")

	up := &recordingUploader{}
	ing := newTestIngestor(writeWhitelist(t, "temp", "sleep"), up, false)

	res := ing.IngestFolder(context.Background(), dir, nil)

	assert.Empty(t, res.Succeeded)
	assert.Empty(t, res.Failed)
	assert.Empty(t, up.calls)
}

func TestIngestFolderDryRunSkipsUploads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "temp_20240114_oura_17.csv", tempCSV)
	writeFile(t, dir, "sleep_20240114_oura_17.csv", sleepCSV)

	up := &recordingUploader{}
	ing := newTestIngestor(writeWhitelist(t, "temp", "sleep"), up, true)

	res := ing.IngestFolder(context.Background(), dir, nil)

	assert.Len(t, res.Succeeded, 2)
	assert.Empty(t, res.Failed)
	assert.Empty(t, up.calls)
}

func TestIngestFolderPartialFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "temp_20240114_oura_1.csv", tempCSV)
	writeFile(t, dir, "temp_20240114_oura_2.csv", tempCSVCorrupt)
	writeFile(t, dir, "temp_20240114_oura_3.csv", tempCSV)

	up := &recordingUploader{}
	ing := newTestIngestor(writeWhitelist(t, "temp"), up, false)

	res := ing.IngestFolder(context.Background(), dir, nil)

	require.Len(t, res.Succeeded, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, int64(2), res.Failed[0].Identity.PID)
	assert.Len(t, up.calls, 2)
}

func TestIngestFolderSpecificPID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "temp_20240114_oura_1.csv", tempCSV)
	writeFile(t, dir, "temp_20240114_oura_2.csv", tempCSV)

	up := &recordingUploader{}
	ing := newTestIngestor(writeWhitelist(t, "temp"), up, false)

	pid := int64(2)
	res := ing.IngestFolder(context.Background(), dir, &pid)

	require.Len(t, res.Succeeded, 1)
	assert.Equal(t, int64(2), res.Succeeded[0].Identity.PID)
	require.Len(t, up.calls, 1)
	assert.Equal(t, int64(2), up.calls[0].PID)
}

func TestIngestFolderUnreadableDir(t *testing.T) {
	up := &recordingUploader{}
	ing := newTestIngestor(writeWhitelist(t, "temp"), up, false)

	dir := filepath.Join(t.TempDir(), "missing")
	res := ing.IngestFolder(context.Background(), dir, nil)

	// A folder-level failure implicates no participant.
	require.Error(t, res.Err)
	assert.Equal(t, dir, res.Dir)
	assert.Empty(t, res.Failed)
	assert.Empty(t, res.Succeeded)
	assert.Empty(t, up.calls)
}

func TestIngestFileDeidentifiesBeforeUpload(t *testing.T) {
	dir := t.TempDir()
	// Sleep has no modifier, so sensitive columns reach the uploader and
	// must arrive redacted.
	writeFile(t, dir, "sleep_20240114_oura_5.csv",
		"email,score\npat@example.com,80\n")

	var got *model.Batch
	up := &captureUploader{batch: &got}
	ing := NewIngestor(writeWhitelist(t, "sleep"), transform.NewRegistry(zap.NewNop()), up, false, zap.NewNop())

	res := ing.IngestFolder(context.Background(), dir, nil)
	require.Empty(t, res.Failed)
	require.NotNil(t, got)

	email := got.Column("email")
	require.NotNil(t, email)
	assert.Equal(t, []any{transform.PlaceholderEmail}, email.Values)
	pid := got.Column("pid")
	require.NotNil(t, pid)
	assert.Equal(t, []any{int64(5)}, pid.Values)
}

type captureUploader struct {
	batch **model.Batch
}

func (c *captureUploader) Upload(_ context.Context, b *model.Batch) error {
	*c.batch = b
	return nil
}

func TestIngestFolderManyFiles(t *testing.T) {
	dir := t.TempDir()
	for pid := 1; pid <= 4; pid++ {
		writeFile(t, dir, fmt.Sprintf("temp_20240114_oura_%d.csv", pid), tempCSV)
	}

	up := &recordingUploader{}
	ing := newTestIngestor(writeWhitelist(t, "temp"), up, false)

	res := ing.IngestFolder(context.Background(), dir, nil)
	assert.Len(t, res.Succeeded, 4)
	assert.Len(t, up.calls, 4)
}
