package chunk

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/geotweets/geotweets/internal/label"
	"github.com/geotweets/geotweets/internal/observability"
	"github.com/geotweets/geotweets/internal/progress"
	"github.com/geotweets/geotweets/internal/storage"
)

// Options configures one chunking run.
type Options struct {
	// Inputs are the NDJSON files to repartition, plain or gzip-compressed.
	Inputs []string

	// OutputDir receives the merged chunk files.
	OutputDir string

	// WorkDir holds the per-worker partition directories. Defaults to a
	// run-scoped directory under the system temp root. It should sit on the
	// same filesystem as OutputDir so unique chunks move by rename.
	WorkDir string

	// Jobs is the worker count. Defaults to 1.
	Jobs int

	// Label selects and configures the labeling strategy.
	Label label.Config

	// KeepPartitions leaves the partition directories in place after the
	// merge, for inspection or reruns.
	KeepPartitions bool

	// Progress receives the progress display. Nil suppresses it.
	Progress io.Writer

	// Publish, when non-nil, uploads every merged chunk under PublishPrefix
	// after the merge completes.
	Publish       storage.ObjectStorage
	PublishPrefix string
}

// RunStats summarizes one chunking run.
type RunStats struct {
	Strategy     string
	Jobs         int
	Files        int
	Records      int64
	Skipped      int64
	Chunks       int
	Moved        int
	Concatenated int
	Duration     time.Duration
	Slots        []progress.SlotCounts
	Labels       *observability.ChunkStats
}

// Run executes the full repartition-and-merge pipeline: split the inputs
// across a worker pool, route every record into per-worker partition
// directories, then merge the partitions into OutputDir. Partition
// directories are removed afterwards unless KeepPartitions is set.
func Run(ctx context.Context, opts Options) (RunStats, error) {
	start := time.Now()
	stats := RunStats{Jobs: opts.Jobs, Files: len(opts.Inputs), Labels: observability.NewChunkStats()}

	if opts.Jobs == 0 {
		opts.Jobs = 1
		stats.Jobs = 1
	}

	labeler, err := label.New(opts.Label)
	if err != nil {
		return stats, err
	}
	stats.Strategy = labeler.Name()

	shares, err := SplitPaths(opts.Inputs, opts.Jobs)
	if err != nil {
		return stats, err
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir, err = os.MkdirTemp("", "geotweets-chunk-")
		if err != nil {
			return stats, fmt.Errorf("chunk: failed to create work directory: %w", err)
		}
	} else if err := os.MkdirAll(workDir, 0755); err != nil {
		return stats, fmt.Errorf("chunk: failed to create work directory: %w", err)
	}

	// Partition directory names carry the slot index for debuggability and a
	// uuid so reruns over a kept work directory never collide.
	partitions := make([]string, opts.Jobs)
	for i := range partitions {
		partitions[i] = filepath.Join(workDir, fmt.Sprintf("part-%02d-%s", i, uuid.New().String()))
	}

	tracker := progress.NewTracker(opts.Jobs, int64(len(opts.Inputs)), opts.Progress)
	results := make([]JobResult, opts.Jobs)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Jobs; i++ {
		job := &Job{ID: i, Inputs: shares[i], Labeler: labeler, Tracker: tracker}
		dir := partitions[i]
		g.Go(func() error {
			res, err := job.Run(gctx, dir)
			results[job.ID] = res
			return err
		})
	}
	workerErr := g.Wait()
	stats.Slots = tracker.Stop()
	if workerErr != nil {
		return stats, workerErr
	}

	for _, res := range results {
		stats.Records += res.Records
		stats.Skipped += res.Skipped
		stats.Labels.Record(res.Labels)
	}

	merger := &Merger{Partitions: partitions, Dest: opts.OutputDir, KeepSources: opts.KeepPartitions}
	mergeStats, err := merger.Run()
	if err != nil {
		return stats, err
	}
	stats.Moved = mergeStats.Moved
	stats.Concatenated = mergeStats.Concatenated
	stats.Chunks = mergeStats.Moved + mergeStats.Concatenated

	if !opts.KeepPartitions {
		for _, dir := range partitions {
			if err := os.RemoveAll(dir); err != nil {
				log.Printf("chunk: failed to remove partition directory %s: %v", dir, err)
			}
		}
		if opts.WorkDir == "" {
			if err := os.Remove(workDir); err != nil {
				log.Printf("chunk: failed to remove work directory %s: %v", workDir, err)
			}
		}
	}

	if opts.Publish != nil {
		if err := publishChunks(ctx, opts.Publish, opts.PublishPrefix, opts.OutputDir); err != nil {
			return stats, err
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// publishChunks uploads every chunk in dir under prefix.
func publishChunks(ctx context.Context, store storage.ObjectStorage, prefix, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("chunk: failed to read output directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".gz" {
			continue
		}
		key := path.Join(prefix, entry.Name())
		if err := store.Upload(ctx, filepath.Join(dir, entry.Name()), key); err != nil {
			return err
		}
		log.Printf("chunk: published %s", key)
	}
	return nil
}
