package chunk

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
	"github.com/geotweets/geotweets/internal/label"
	"github.com/geotweets/geotweets/internal/progress"
)

// Job processes one worker's share of the input files. Each record is labeled
// and appended to the label's file inside the job's private partition
// directory. Records are preserved byte for byte; labeling is the only
// inspection performed.
type Job struct {
	ID      int
	Inputs  []string
	Labeler label.Labeler
	Tracker *progress.Tracker
}

// JobResult reports what one job produced.
type JobResult struct {
	ID      int
	Dir     string
	Records int64
	Skipped int64
	Labels  map[string]int64
}

// Run consumes every input file in order, routing records into dir. A record
// that cannot be labeled is skipped with a warning and counted; I/O and
// decompression failures abort the job. The partition writer is closed before
// returning so the merge never sees a half-flushed gzip stream.
func (j *Job) Run(ctx context.Context, dir string) (JobResult, error) {
	result := JobResult{ID: j.ID, Dir: dir}

	writer, err := NewPartitionWriter(dir)
	if err != nil {
		return result, err
	}
	defer writer.CloseAll()

	for _, path := range j.Inputs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := j.processFile(ctx, path, writer, &result); err != nil {
			return result, err
		}
		if j.Tracker != nil {
			j.Tracker.Report(j.ID, progress.KindFileDone)
		}
	}

	result.Labels = writer.Counts()
	if err := writer.CloseAll(); err != nil {
		return result, err
	}
	return result, nil
}

func (j *Job) processFile(ctx context.Context, path string, writer *PartitionWriter, result *JobResult) error {
	f, err := os.Open(path)
	if err != nil {
		return pkgerrors.NewChunkError(pkgerrors.CodeInputUnreadable,
			fmt.Sprintf("failed to open input %s", path), err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return pkgerrors.NewChunkError(pkgerrors.CodeInputUnreadable,
				fmt.Sprintf("failed to decompress input %s", path), err)
		}
		defer gz.Close()
		reader = gz
	}

	// ReadBytes rather than a Scanner: tweet records with long entity lists
	// routinely exceed the default Scanner token limit.
	buf := bufio.NewReaderSize(reader, 1<<20)
	line := int64(0)
	for {
		record, err := buf.ReadBytes('\n')
		if len(record) > 0 {
			line++
			record = trimLineEnding(record)
			if len(record) > 0 {
				if werr := j.processRecord(record, path, line, writer, result); werr != nil {
					return werr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return pkgerrors.NewChunkError(pkgerrors.CodeInputUnreadable,
				fmt.Sprintf("failed reading input %s at line %d", path, line), err)
		}
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
}

func (j *Job) processRecord(record []byte, path string, line int64, writer *PartitionWriter, result *JobResult) error {
	lbl, err := j.Labeler.Label(record)
	if err != nil {
		if pkgerrors.IsMalformedRecord(err) {
			log.Printf("chunk: job %d: skipping malformed record at %s:%d: %v", j.ID, path, line, err)
			result.Skipped++
			if j.Tracker != nil {
				j.Tracker.Report(j.ID, progress.KindSkipped)
			}
			return nil
		}
		return err
	}

	if err := writer.Write(lbl, record); err != nil {
		return err
	}
	result.Records++
	if j.Tracker != nil {
		j.Tracker.Report(j.ID, progress.KindRecord)
	}
	return nil
}

// trimLineEnding strips the trailing newline and an optional carriage return.
// Interior bytes are never touched.
func trimLineEnding(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
