// Package legacy converts zip archives of pickled tweet objects into
// newline-delimited JSON. The archives predate JSON-native collection; each
// zip member is a concatenation of pickled objects, sometimes truncated or
// corrupted mid-stream.
package legacy

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
)

// pickleEnd marks the end of one pickled object within a member. The
// failsafe scanner splits on it instead of trusting the stream structure.
var pickleEnd = []byte("sb.")

// Options configures one conversion.
type Options struct {
	// OutputDir receives the converted file. Defaults to the archive's
	// directory.
	OutputDir string

	// Failsafe scans raw bytes for object boundaries, skipping corrupt
	// objects instead of aborting. Slower, but tolerant of truncation.
	Failsafe bool

	// KeepOriginal leaves the source archive in place after conversion.
	KeepOriginal bool
}

// Stats reports one converted archive.
type Stats struct {
	Output  string
	Objects int64
	Corrupt int64
	Skipped bool
}

// Convert turns one zip archive of pickled objects into <name>.json.gz. The
// output is written to a temp file and renamed into place on success; an
// existing output is skipped. The source archive is removed afterwards unless
// KeepOriginal is set.
func Convert(path string, opts Options) (Stats, error) {
	output := outputName(path, opts.OutputDir)
	stats := Stats{Output: output}

	if _, err := os.Stat(output); err == nil {
		log.Printf("legacy: skipping %s, output exists", path)
		stats.Skipped = true
		return stats, nil
	}

	archive, err := zip.OpenReader(path)
	if err != nil {
		return stats, pkgerrors.NewLegacyError(pkgerrors.CodeCorruptPickle,
			fmt.Sprintf("failed to open archive %s", path), err)
	}
	defer archive.Close()

	tempPath := output + ".temp"
	out, err := os.Create(tempPath)
	if err != nil {
		return stats, fmt.Errorf("legacy: failed to create output %s: %w", tempPath, err)
	}
	defer func() {
		out.Close()
		os.Remove(tempPath)
	}()

	gz := gzip.NewWriter(out)
	w := bufio.NewWriter(gz)

	emit := func(v interface{}) error {
		record, err := json.Marshal(normalize(v))
		if err != nil {
			return fmt.Errorf("legacy: failed to encode record: %w", err)
		}
		if _, err := w.Write(record); err != nil {
			return fmt.Errorf("legacy: failed to write record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("legacy: failed to write record: %w", err)
		}
		stats.Objects++
		return nil
	}

	for _, member := range archive.File {
		r, err := member.Open()
		if err != nil {
			return stats, pkgerrors.NewLegacyError(pkgerrors.CodeCorruptPickle,
				fmt.Sprintf("failed to open archive member %s", member.Name), err)
		}
		if opts.Failsafe {
			err = convertMemberFailsafe(r, member.Name, emit, &stats)
		} else {
			err = convertMember(r, member.Name, emit)
		}
		r.Close()
		if err != nil {
			return stats, err
		}
	}

	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("legacy: failed to flush output: %w", err)
	}
	if err := gz.Close(); err != nil {
		return stats, fmt.Errorf("legacy: failed to flush output: %w", err)
	}
	if err := out.Close(); err != nil {
		return stats, fmt.Errorf("legacy: failed to close output: %w", err)
	}
	if err := os.Rename(tempPath, output); err != nil {
		return stats, fmt.Errorf("legacy: failed to finalize output %s: %w", output, err)
	}

	if !opts.KeepOriginal {
		if err := os.Remove(path); err != nil {
			return stats, fmt.Errorf("legacy: failed to remove source %s: %w", path, err)
		}
	}
	return stats, nil
}

// convertMember decodes a member as a well-formed stream of concatenated
// pickles. Any decode failure aborts: the caller should retry with Failsafe.
func convertMember(r io.Reader, name string, emit func(interface{}) error) error {
	u := newUnpickler(bufio.NewReader(r))
	for {
		obj, err := u.Load()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return pkgerrors.NewLegacyError(pkgerrors.CodeCorruptPickle,
				fmt.Sprintf("failed to decode member %s", name), err)
		}
		if err := emit(obj); err != nil {
			return err
		}
	}
}

// convertMemberFailsafe splits the member's raw bytes on the pickle end
// marker and decodes each segment independently. A segment that fails to
// decode is reported with its line range and skipped; trailing garbage after
// the last marker is ignored.
func convertMemberFailsafe(r io.Reader, name string, emit func(interface{}) error, stats *Stats) error {
	buf := bufio.NewReaderSize(r, 1<<20)

	var current [][]byte
	lineNumber := int64(0)
	for {
		line, err := buf.ReadBytes('\n')
		if len(line) > 0 {
			if bytes.HasPrefix(line, pickleEnd) {
				current = append(current, pickleEnd)
				segment := bytes.Join(current, nil)
				obj, derr := decodeSegment(segment)
				if derr != nil {
					log.Printf("legacy: %s: corrupt object at lines %d-%d: %v",
						name, lineNumber-int64(len(current)), lineNumber, derr)
					stats.Corrupt++
				} else if err := emit(obj); err != nil {
					return err
				}
				rest := make([]byte, len(line)-len(pickleEnd))
				copy(rest, line[len(pickleEnd):])
				current = [][]byte{rest}
			} else {
				current = append(current, append([]byte(nil), line...))
			}
			lineNumber++
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("legacy: failed reading member %s: %w", name, err)
		}
	}
}

func decodeSegment(segment []byte) (interface{}, error) {
	u := newUnpickler(bytes.NewReader(segment))
	return u.Load()
}

func outputName(path, outputDir string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".zip") {
		base = strings.TrimSuffix(base, ".zip") + ".json.gz"
	} else {
		base += ".json.gz"
	}
	if outputDir == "" {
		outputDir = filepath.Dir(path)
	}
	return filepath.Join(outputDir, base)
}
