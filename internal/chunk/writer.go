package chunk

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"
)

// ChunkSuffix is the filename suffix of every partitioned output file.
const ChunkSuffix = ".json.gz"

// PartitionWriter appends labeled records to gzip-compressed files inside a
// single worker's private partition directory. One file handle is opened per
// distinct label and held open for the lifetime of the worker: reopening per
// record is the dominant cost at scale. PartitionWriter is not safe for
// concurrent use; each worker owns exactly one.
type PartitionWriter struct {
	dir    string
	open   map[string]*labelFile
	counts map[string]int64
}

type labelFile struct {
	f  *os.File
	gz *gzip.Writer
}

// NewPartitionWriter creates the partition directory if needed and returns a
// writer for it.
func NewPartitionWriter(dir string) (*PartitionWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("chunk: failed to create partition directory: %w", err)
	}
	return &PartitionWriter{
		dir:    dir,
		open:   make(map[string]*labelFile),
		counts: make(map[string]int64),
	}, nil
}

// Dir returns the partition directory this writer owns.
func (w *PartitionWriter) Dir() string { return w.dir }

// Write appends one record line to the file for label, creating
// <label>.json.gz on first use. The record bytes are written unmodified,
// followed by a newline.
func (w *PartitionWriter) Write(label string, record []byte) error {
	lf, ok := w.open[label]
	if !ok {
		f, err := os.OpenFile(filepath.Join(w.dir, label+ChunkSuffix),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("chunk: failed to open chunk for label %s: %w", label, err)
		}
		lf = &labelFile{f: f, gz: gzip.NewWriter(f)}
		w.open[label] = lf
	}

	if _, err := lf.gz.Write(record); err != nil {
		return fmt.Errorf("chunk: failed to write record for label %s: %w", label, err)
	}
	if _, err := lf.gz.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("chunk: failed to write record for label %s: %w", label, err)
	}
	w.counts[label]++
	return nil
}

// Counts returns a copy of the per-label record tallies.
func (w *PartitionWriter) Counts() map[string]int64 {
	out := make(map[string]int64, len(w.counts))
	for label, n := range w.counts {
		out[label] = n
	}
	return out
}

// Labels returns the sorted set of labels this writer has files for.
func (w *PartitionWriter) Labels() []string {
	labels := make([]string, 0, len(w.open))
	for label := range w.open {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// CloseAll flushes and releases every open handle. It must run before the
// worker reports completion; callers defer it so release happens even when a
// write fails partway through. Every handle is attempted regardless of
// earlier close errors; the first error is returned.
func (w *PartitionWriter) CloseAll() error {
	var firstErr error
	for label, lf := range w.open {
		if err := lf.gz.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("chunk: failed to flush chunk for label %s: %w", label, err)
		}
		if err := lf.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("chunk: failed to close chunk for label %s: %w", label, err)
		}
		delete(w.open, label)
	}
	return firstErr
}
