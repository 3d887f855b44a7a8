// Package main implements geotweets-sqlite, which imports tweet archives into
// an indexed SQLite database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/geotweets/geotweets/internal/config"
	"github.com/geotweets/geotweets/internal/observability"
	"github.com/geotweets/geotweets/internal/store"
)

func main() {
	var (
		configFile  string
		dbPath      string
		batchSize   int
		skipIndexes bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dbPath, "db", "", "Path to the target SQLite database")
	flag.IntVar(&batchSize, "batch", 0, "Records per insert transaction")
	flag.BoolVar(&skipIndexes, "skip-indexes", false, "Skip building indexes after the import")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "geotweets-sqlite - import tweet archives into SQLite\n\n")
		fmt.Fprintf(os.Stderr, "Usage: geotweets-sqlite [options] <file> [...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if dbPath == "" {
		dbPath = cfg.Store.DatabasePath
	}
	if batchSize == 0 {
		batchSize = cfg.Store.BatchSize
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	loader, err := store.Open(dbPath, batchSize)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer loader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	bar := progressbar.NewOptions(flag.NArg(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("importing files"),
		progressbar.OptionShowCount(),
	)

	start := time.Now()
	var tweets, skipped int64
	for _, path := range flag.Args() {
		stats, err := loader.LoadFile(ctx, path)
		if err != nil {
			log.Fatalf("Failed to import %s: %v", path, err)
		}
		tweets += stats.Tweets
		skipped += stats.Skipped
		bar.Add(1)
	}
	bar.Finish()
	log.Printf("%s", observability.Summary(tweets, skipped, time.Since(start)))

	if !skipIndexes && cfg.Store.BuildIndexes {
		if err := store.NewIndexer(loader.DB()).BuildAll(ctx); err != nil {
			log.Fatalf("Failed to build indexes: %v", err)
		}
	}
}
