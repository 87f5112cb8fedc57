// pkg/route/route.go

// Package route maps export file names onto destination tables. Export
// files follow a fixed convention: a table token, a device serial, an
// export kind and the participant id, e.g. temp_20240114_oura_17.csv.
// Anything else in an export folder is not ours to ingest.
package route

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// The table token admits underscores so hyphenated table names survive
// the hyphen fold below (heart-rate → heart_rate).
var filePattern = regexp.MustCompile(`(?i)^([a-z0-9_]+)_(\d+)_([a-z]+)_(\d+)\.csv$`)

// Identity names the destination of one export file.
type Identity struct {
	Table string
	PID   int64
}

// ParseFilename extracts the table name and participant id from an export
// file name. Hyphens are folded to underscores before matching, and the
// table token is normalized to lowercase. Returns ok=false for names that
// do not follow the convention.
func ParseFilename(name string) (Identity, bool) {
	name = strings.ReplaceAll(name, "-", "_")
	m := filePattern.FindStringSubmatch(name)
	if m == nil {
		return Identity{}, false
	}

	pid, err := strconv.ParseInt(m[4], 10, 64)
	if err != nil {
		// \d+ can still overflow int64
		return Identity{}, false
	}

	return Identity{
		Table: strings.ToLower(m[1]),
		PID:   pid,
	}, true
}

// Whitelist is the operator-curated list of table names eligible for
// ingestion, loaded once per run and immutable afterwards.
type Whitelist struct {
	names []string
}

// LoadWhitelist reads a whitelist file: one table name per line, trimmed,
// blank lines ignored, order preserved. A missing file is an error — the
// caller is expected to abort the run before any ingestion begins.
func LoadWhitelist(path string) (*Whitelist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open whitelist %s: %w", path, err)
	}
	defer f.Close()

	wl := &Whitelist{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		wl.names = append(wl.names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading whitelist %s: %w", path, err)
	}

	return wl, nil
}

// Contains reports whether a table name is whitelisted.
func (w *Whitelist) Contains(table string) bool {
	for _, n := range w.names {
		if n == table {
			return true
		}
	}
	return false
}

// Names returns the whitelisted table names in file order.
func (w *Whitelist) Names() []string {
	return w.names
}
