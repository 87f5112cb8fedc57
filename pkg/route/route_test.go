// pkg/route/route_test.go
package route

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		wantTable string
		wantPID   int64
		wantOK    bool
	}{
		{"basic", "temp_20240114_oura_17.csv", "temp", 17, true},
		{"uppercase", "TEMP_20240114_OURA_17.CSV", "temp", 17, true},
		{"hyphens folded", "heart-rate_20240114_oura_3.csv", "heart_rate", 3, true},
		{"multi-word table", "blood-oxygen-level_20240114_oura_12.csv", "blood_oxygen_level", 12, true},
		{"underscored table", "heart_rate_20240114_oura_3.csv", "heart_rate", 3, true},
		{"numeric table token", "spo2_20240114_oura_8.csv", "spo2", 8, true},
		{"pid zero", "activity_20240114_oura_0.csv", "activity", 0, true},
		{"missing extension", "temp_20240114_oura_17", "", 0, false},
		{"wrong extension", "temp_20240114_oura_17.txt", "", 0, false},
		{"too few segments", "temp_oura_17.csv", "", 0, false},
		{"non-numeric pid", "temp_20240114_oura_abc.csv", "", 0, false},
		{"unrelated file", "README.md", "", 0, false},
		{"empty", "", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseFilename(tt.file)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantTable, id.Table)
				assert.Equal(t, tt.wantPID, id.PID)
			}
		})
	}
}

func TestLoadWhitelist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whitelist.txt")
	content := "temp\n  activity  \n\nsleep\ntemp\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	wl, err := LoadWhitelist(path)
	require.NoError(t, err)

	// Order preserved, whitespace trimmed, blanks dropped, duplicates kept.
	assert.Equal(t, []string{"temp", "activity", "sleep", "temp"}, wl.Names())
	assert.True(t, wl.Contains("activity"))
	assert.False(t, wl.Contains("readiness"))
}

func TestLoadWhitelistMissingFile(t *testing.T) {
	_, err := LoadWhitelist(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}
