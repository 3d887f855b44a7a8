// Package main implements geotweets-recover, a one-off converter from legacy
// zip archives of pickled tweet objects to newline-delimited JSON.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/geotweets/geotweets/internal/config"
	"github.com/geotweets/geotweets/internal/legacy"
)

func main() {
	var (
		configFile   string
		outputDir    string
		failsafe     bool
		keepOriginal bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&outputDir, "output", "", "Directory for converted files (default: next to each archive)")
	flag.BoolVar(&failsafe, "failsafe", false, "Scan for object boundaries, skipping corrupt objects (slower)")
	flag.BoolVar(&keepOriginal, "keep-original", false, "Keep source archives after conversion")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "geotweets-recover - convert legacy pickled tweet archives to JSON\n\n")
		fmt.Fprintf(os.Stderr, "Usage: geotweets-recover [options] <archive.zip> [...]\n\n")
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
	if outputDir == "" {
		outputDir = cfg.Recover.OutputDir
	}
	if !failsafe {
		failsafe = cfg.Recover.Failsafe
	}
	if !keepOriginal {
		keepOriginal = cfg.Recover.KeepOriginals
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	if failsafe {
		log.Printf("using failsafe object loader")
	}

	var objects, corrupt int64
	for _, path := range flag.Args() {
		stats, err := legacy.Convert(path, legacy.Options{
			OutputDir:    outputDir,
			Failsafe:     failsafe,
			KeepOriginal: keepOriginal,
		})
		if err != nil {
			log.Fatalf("Failed to convert %s: %v", path, err)
		}
		if !stats.Skipped {
			log.Printf("converted %s: %s objects, %d corrupt", path,
				humanize.Comma(stats.Objects), stats.Corrupt)
		}
		objects += stats.Objects
		corrupt += stats.Corrupt
	}
	log.Printf("recovered %s objects (%s corrupt skipped)",
		humanize.Comma(objects), humanize.Comma(corrupt))
}
