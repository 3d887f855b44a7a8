// Package main implements geotweets-csv, which flattens newline-delimited
// tweet archives into gzip-compressed CSV files.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/geotweets/geotweets/internal/config"
	"github.com/geotweets/geotweets/internal/flatten"
	"github.com/geotweets/geotweets/internal/observability"
)

func main() {
	var (
		configFile string
		fields     string
		outputDir  string
		overwrite  bool
		cacheSize  int
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&fields, "fields", "", "Comma-separated field list, nesting by dots (default: standard tweet columns)")
	flag.StringVar(&outputDir, "output", "", "Directory for CSV files (default: next to each input)")
	flag.BoolVar(&overwrite, "overwrite", false, "Regenerate outputs that already exist")
	flag.IntVar(&cacheSize, "cache-size", 0, "Geometry WKB cache capacity")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "geotweets-csv - flatten tweet archives into CSV\n\n")
		fmt.Fprintf(os.Stderr, "Usage: geotweets-csv [options] <file> [...]\n\n")
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
	if cacheSize == 0 {
		cacheSize = cfg.Flatten.GeometryCacheSize
	}
	if !overwrite {
		overwrite = cfg.Flatten.Overwrite
	}
	if outputDir == "" {
		outputDir = cfg.Flatten.OutputDir
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	var fieldList []string
	if fields != "" {
		fieldList = strings.Split(fields, ",")
	}

	fl, err := flatten.New(fieldList, cacheSize)
	if err != nil {
		log.Fatalf("Failed to create flattener: %v", err)
	}

	bar := progressbar.NewOptions(flag.NArg(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("converting files"),
		progressbar.OptionShowCount(),
	)

	start := time.Now()
	var rows, absent, skipped int64
	for _, path := range flag.Args() {
		stats, err := fl.FlattenFile(path, outputDir, overwrite)
		if err != nil {
			log.Fatalf("Failed to flatten %s: %v", path, err)
		}
		if stats.Skipped {
			log.Printf("skipping %s, output exists", path)
			skipped++
		}
		rows += stats.Rows
		absent += stats.Absent
		bar.Add(1)
	}
	bar.Finish()

	log.Printf("%s", observability.Summary(rows, 0, time.Since(start)))
	log.Printf("absent cells=%s files skipped=%d geometry cache hits=%s misses=%s",
		humanize.Comma(absent), skipped,
		humanize.Comma(fl.Geometry().Hits()), humanize.Comma(fl.Geometry().Misses()))
}
