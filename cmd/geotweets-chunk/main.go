// Package main implements geotweets-chunk, the repartitioning tool: it routes
// tweet records from arbitrary newline-delimited JSON inputs into one output
// file per label (calendar day or hashed user id).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/geotweets/geotweets/internal/chunk"
	"github.com/geotweets/geotweets/internal/config"
	"github.com/geotweets/geotweets/internal/label"
	"github.com/geotweets/geotweets/internal/observability"
	"github.com/geotweets/geotweets/internal/storage"
)

func main() {
	var (
		configFile  string
		outputDir   string
		tempDir     string
		keep        bool
		jobs        int
		strategy    string
		hashLength  int
		fromStorage string
		publish     bool
		quiet       bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&outputDir, "output", "", "Directory for merged chunk files (default \".\")")
	flag.StringVar(&tempDir, "temp", "", "Working directory for partition files (default \"geotweets-chunker-temp\")")
	flag.BoolVar(&keep, "keep", false, "Keep partition directories after the merge")
	flag.IntVar(&jobs, "jobs", 0, "Number of parallel workers (default 1)")
	flag.StringVar(&strategy, "strategy", "", "Labeling strategy: day, hash")
	flag.IntVar(&hashLength, "hash-length", 0, "Hex characters in hash-bucket labels")
	flag.StringVar(&fromStorage, "from-storage", "", "Fetch inputs under this prefix from the configured object store")
	flag.BoolVar(&publish, "publish", false, "Upload merged chunks to the configured object store")
	flag.BoolVar(&quiet, "quiet", false, "Suppress the progress display")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "geotweets-chunk - repartition tweet archives by label\n\n")
		fmt.Fprintf(os.Stderr, "Usage: geotweets-chunk [options] <file|dir> [...]\n\n")
		fmt.Fprintf(os.Stderr, "Directories are walked recursively for .json and .json.gz files.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 && fromStorage == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override the loaded configuration.
	if outputDir != "" {
		cfg.Chunk.OutputDir = outputDir
	}
	if tempDir != "" {
		cfg.Chunk.WorkDir = tempDir
	}
	if keep {
		cfg.Chunk.KeepPartitions = true
	}
	if jobs > 0 {
		cfg.Chunk.Jobs = jobs
	}
	if strategy != "" {
		cfg.Chunk.Label.Strategy = label.Strategy(strategy)
	}
	if hashLength > 0 {
		cfg.Chunk.Label.HashLength = hashLength
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var store storage.ObjectStorage
	if publish || fromStorage != "" {
		store, err = openStorage(cfg)
		if err != nil {
			log.Fatalf("Failed to open object storage: %v", err)
		}
	}

	inputs, err := collectInputs(flag.Args())
	if err != nil {
		log.Fatalf("Failed to collect inputs: %v", err)
	}
	if fromStorage != "" {
		fetchDir, err := os.MkdirTemp("", "geotweets-inputs-")
		if err != nil {
			log.Fatalf("Failed to create fetch directory: %v", err)
		}
		defer os.RemoveAll(fetchDir)
		fetched, err := chunk.FetchInputs(ctx, store, fromStorage, fetchDir)
		if err != nil {
			log.Fatalf("Failed to fetch inputs from storage: %v", err)
		}
		inputs = append(inputs, fetched...)
	}
	if len(inputs) == 0 {
		log.Fatalf("No input files found")
	}

	opts := chunk.Options{
		Inputs:         inputs,
		OutputDir:      cfg.Chunk.OutputDir,
		WorkDir:        cfg.Chunk.WorkDir,
		Jobs:           cfg.Chunk.Jobs,
		Label:          cfg.Chunk.Label,
		KeepPartitions: cfg.Chunk.KeepPartitions,
	}
	if !quiet {
		opts.Progress = os.Stderr
	}
	if publish {
		opts.Publish = store
		opts.PublishPrefix = cfg.Chunk.PublishPrefix
	}

	stats, err := chunk.Run(ctx, opts)
	if err != nil {
		log.Fatalf("Chunking failed: %v", err)
	}

	log.Printf("strategy=%s workers=%d files=%d chunks=%d (%d moved, %d concatenated)",
		stats.Strategy, stats.Jobs, stats.Files, stats.Chunks, stats.Moved, stats.Concatenated)
	log.Printf("%s", observability.Summary(stats.Records, stats.Skipped, stats.Duration))
	for _, ls := range stats.Labels.TopLabels(5) {
		log.Printf("  %s: %s records", ls.Label, humanize.Comma(ls.Records))
	}
}

// collectInputs expands the positional arguments into a sorted list of input
// files. Directories are walked recursively.
func collectInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		err = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && (strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".json.gz")) {
				inputs = append(inputs, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(inputs)
	return inputs, nil
}

func openStorage(cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "s3":
		return storage.NewS3Storage(context.Background(), cfg.Storage.Bucket, cfg.Storage.S3)
	default:
		return storage.NewLocalStorage(cfg.Storage.Path)
	}
}
