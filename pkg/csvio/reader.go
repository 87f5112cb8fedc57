// pkg/csvio/reader.go

// Package csvio parses one export CSV into a typed columnar batch,
// inferring a primitive type per column from the sampled values.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mobilesensing/device-ingress/pkg/model"
)

// timeFormats are tried in order when deciding whether a string column is
// a timestamp column. Mirrors the formats seen in real device exports.
var timeFormats = []string{
	time.RFC3339,                       // ISO8601 with timezone
	"2006-01-02T15:04:05Z",             // ISO8601 UTC
	"2006-01-02T15:04:05.999999Z",      // ISO8601 with microseconds
	"2006-01-02T15:04:05.999999-07:00", // ISO8601 with microseconds and TZ
	"2006-01-02 15:04:05",              // SQL timestamp
	"2006-01-02",                       // Date only
}

// ParseTime parses a value with the first matching timestamp format. The
// parsed time keeps its source UTC offset.
func ParseTime(value string) (time.Time, error) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// ReadFile parses a CSV file into a Batch. See Read.
func ReadFile(path string) (*model.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer f.Close()

	b, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return b, nil
}

// Read parses CSV data with a header row into a Batch. Column types are
// inferred from the non-empty values: int64 if every value parses as an
// integer, float64 if every value parses as a number, timestamp if every
// value matches a known time format, string otherwise. Empty cells become
// nulls and do not participate in inference.
func Read(r io.Reader) (*model.Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0 // all records must match the header width

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		header[i] = h
	}

	raw := make([][]string, len(header))
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		for i, v := range rec {
			raw[i] = append(raw[i], v)
		}
	}

	batch := &model.Batch{}
	for i, name := range header {
		col := inferColumn(name, raw[i])
		if err := batch.AddColumn(col.Name, col.Kind, col.Values); err != nil {
			return nil, err
		}
	}

	return batch, nil
}

// inferColumn types a raw string column and converts its values.
func inferColumn(name string, raw []string) *model.Column {
	kind := inferKind(raw)

	values := make([]any, len(raw))
	for i, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue // null
		}
		switch kind {
		case model.KindInt64:
			n, _ := strconv.ParseInt(v, 10, 64)
			values[i] = n
		case model.KindFloat64:
			f, _ := strconv.ParseFloat(v, 64)
			values[i] = f
		case model.KindTimestamp:
			t, _ := ParseTime(v)
			values[i] = t
		default:
			values[i] = v
		}
	}

	return &model.Column{Name: name, Kind: kind, Values: values}
}

func inferKind(raw []string) model.Kind {
	sawValue := false
	isInt, isFloat, isTime := true, true, true

	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		sawValue = true

		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if isTime {
			if _, err := ParseTime(v); err != nil {
				isTime = false
			}
		}
		if !isInt && !isFloat && !isTime {
			break
		}
	}

	switch {
	case !sawValue:
		return model.KindString
	case isInt:
		return model.KindInt64
	case isFloat:
		return model.KindFloat64
	case isTime:
		return model.KindTimestamp
	default:
		return model.KindString
	}
}
