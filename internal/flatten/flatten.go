// Package flatten converts nested tweet JSON records into tabular CSV rows.
//
// Column values are extracted by dotted path; a field that is missing or of
// an unusable shape yields an explicitly absent cell, counted per file, never
// a silently swallowed error.
package flatten

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"
)

// CSVSuffix is the filename suffix of flattened output files.
const CSVSuffix = ".csv.gz"

// Flattener converts records to rows for a fixed field list. It owns the
// geometry cache; callers share one Flattener across files to keep the cache
// warm.
type Flattener struct {
	fields   []string
	geometry *GeometryCache
}

// FileStats reports one flattened file.
type FileStats struct {
	Output  string
	Rows    int64
	Absent  int64
	Skipped bool
}

// New creates a Flattener for the given field list. An empty list selects
// DefaultFields.
func New(fields []string, cacheSize int) (*Flattener, error) {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	geometry, err := NewGeometryCache(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Flattener{fields: fields, geometry: geometry}, nil
}

// Fields returns the column list, in output order.
func (fl *Flattener) Fields() []string { return fl.fields }

// Geometry exposes the cache for run reporting.
func (fl *Flattener) Geometry() *GeometryCache { return fl.geometry }

// Row flattens one record into CSV cells, one per field. The second return
// value counts absent cells.
func (fl *Flattener) Row(record []byte) ([]string, int) {
	row := make([]string, len(fl.fields))
	absent := 0

	for i, field := range fl.fields {
		value, ok := fl.cell(record, field)
		if !ok {
			absent++
			continue
		}
		row[i] = value
	}
	return row, absent
}

func (fl *Flattener) cell(record []byte, field string) (string, bool) {
	res := gjson.GetBytes(record, field)
	if !res.Exists() || res.Type == gjson.Null {
		return "", false
	}

	if numberLongFields[field] && res.IsObject() {
		inner := res.Get("$numberLong")
		if !inner.Exists() {
			return "", false
		}
		return inner.String(), true
	}

	if geometryFields[field] {
		encoded, err := fl.geometry.WKBHex([]byte(res.Raw))
		if err != nil {
			return "", false
		}
		return encoded, true
	}

	// Arrays and objects (entity lists) pass through as raw JSON.
	if res.IsArray() || res.IsObject() {
		return res.Raw, true
	}
	return res.String(), true
}

// FlattenFile converts one newline-delimited JSON file into <name>.csv.gz in
// outputDir. The output is written to a .part temp file and renamed into
// place only on success. An existing output is skipped unless overwrite is
// set.
func (fl *Flattener) FlattenFile(path, outputDir string, overwrite bool) (FileStats, error) {
	output := outputName(path, outputDir)
	stats := FileStats{Output: output}

	if !overwrite {
		if _, err := os.Stat(output); err == nil {
			stats.Skipped = true
			return stats, nil
		}
	}

	in, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("flatten: failed to open input %s: %w", path, err)
	}
	defer in.Close()

	var reader io.Reader = in
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(in)
		if err != nil {
			return stats, fmt.Errorf("flatten: failed to decompress input %s: %w", path, err)
		}
		defer gz.Close()
		reader = gz
	}

	tempFile := output + ".part"
	out, err := os.Create(tempFile)
	if err != nil {
		return stats, fmt.Errorf("flatten: failed to create output %s: %w", tempFile, err)
	}
	defer func() {
		out.Close()
		os.Remove(tempFile)
	}()

	gz := gzip.NewWriter(out)
	w := csv.NewWriter(gz)

	if err := w.Write(fl.fields); err != nil {
		return stats, fmt.Errorf("flatten: failed to write header: %w", err)
	}

	buf := bufio.NewReaderSize(reader, 1<<20)
	for {
		line, err := buf.ReadBytes('\n')
		if len(line) > 0 {
			record := strings.TrimRight(string(line), "\r\n")
			if record != "" {
				row, absent := fl.Row([]byte(record))
				if err := w.Write(row); err != nil {
					return stats, fmt.Errorf("flatten: failed to write row: %w", err)
				}
				stats.Rows++
				stats.Absent += int64(absent)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("flatten: failed reading input %s: %w", path, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return stats, fmt.Errorf("flatten: failed to flush rows: %w", err)
	}
	if err := gz.Close(); err != nil {
		return stats, fmt.Errorf("flatten: failed to flush output: %w", err)
	}
	if err := out.Close(); err != nil {
		return stats, fmt.Errorf("flatten: failed to close output: %w", err)
	}

	if err := os.Rename(tempFile, output); err != nil {
		return stats, fmt.Errorf("flatten: failed to finalize output %s: %w", output, err)
	}
	log.Printf("flatten: wrote %s (%d rows)", output, stats.Rows)
	return stats, nil
}

// outputName maps an input filename to its CSV output path. The .json.gz (or
// .json) suffix is replaced; anything else gets the CSV suffix appended.
func outputName(path, outputDir string) string {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, ".json.gz"):
		base = strings.TrimSuffix(base, ".json.gz") + CSVSuffix
	case strings.HasSuffix(base, ".json"):
		base = strings.TrimSuffix(base, ".json") + CSVSuffix
	default:
		base += CSVSuffix
	}
	if outputDir == "" {
		outputDir = filepath.Dir(path)
	}
	return filepath.Join(outputDir, base)
}
