package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
)

// normalIndexes maps tables to the columns that get ordinary b-tree indexes.
var normalIndexes = map[string][]string{
	"tweets": {"user_id", "place_id", "timestamp", "lat", "lon"},
	"places": {"country"},
}

// ftsIndexes maps tables to the text columns that get FTS4 virtual tables,
// one per tokenizer.
var ftsIndexes = map[string][]string{
	"tweets": {"text"},
	"users":  {"description"},
}

var ftsTokenizers = []string{"simple", "porter"}

// Indexer builds secondary indexes on a loaded database. Every step is
// idempotent: existing indexes and virtual tables are detected and skipped,
// so an interrupted build can simply be rerun.
type Indexer struct {
	db *sql.DB
}

// NewIndexer creates an indexer over an open database.
func NewIndexer(db *sql.DB) *Indexer {
	return &Indexer{db: db}
}

// BuildAll creates normal indexes, full-text search tables, and the spatial
// index.
func (ix *Indexer) BuildAll(ctx context.Context) error {
	if err := ix.buildNormal(ctx); err != nil {
		return err
	}
	if err := ix.buildFTS(ctx); err != nil {
		return err
	}
	return ix.buildSpatial(ctx)
}

func (ix *Indexer) buildNormal(ctx context.Context) error {
	existing, err := ix.masterNames(ctx, "index")
	if err != nil {
		return err
	}

	for table, columns := range normalIndexes {
		for _, column := range columns {
			name := fmt.Sprintf("idx_%s_%s", table, column)
			if existing[name] {
				log.Printf("store: index %s already exists", name)
				continue
			}

			start := time.Now()
			ddl := fmt.Sprintf("CREATE INDEX %s ON %s(%s)", name, table, column)
			if _, err := ix.db.ExecContext(ctx, ddl); err != nil {
				return pkgerrors.NewStoreError(pkgerrors.CodeIndexFailed,
					fmt.Sprintf("failed to create index %s", name), err)
			}
			log.Printf("store: created index %s in %s", name, time.Since(start).Round(time.Second))
		}
	}
	return nil
}

// buildFTS creates one FTS4 content table per indexed column and tokenizer
// and populates it from the base table. Tweet and user text search are the
// two query paths these archives exist for.
func (ix *Indexer) buildFTS(ctx context.Context) error {
	existing, err := ix.masterNames(ctx, "table")
	if err != nil {
		return err
	}

	for _, tokenizer := range ftsTokenizers {
		for table, columns := range ftsIndexes {
			for _, column := range columns {
				name := fmt.Sprintf("fts_%s_%s_%s", table, column, tokenizer)
				if existing[name] {
					log.Printf("store: FTS table %s already exists", name)
					continue
				}

				start := time.Now()
				create := fmt.Sprintf(
					"CREATE VIRTUAL TABLE %s USING fts4(content TEXT, tokenize=%s)",
					name, tokenizer)
				if _, err := ix.db.ExecContext(ctx, create); err != nil {
					return pkgerrors.NewStoreError(pkgerrors.CodeIndexFailed,
						fmt.Sprintf("failed to create FTS table %s", name), err)
				}

				// docid mirrors the base table's integer primary key, so FTS
				// matches join straight back to the source rows.
				fill := fmt.Sprintf(
					"INSERT INTO %s(docid, content) SELECT rowid, %s FROM %s WHERE %s IS NOT NULL",
					name, column, table, column)
				if _, err := ix.db.ExecContext(ctx, fill); err != nil {
					return pkgerrors.NewStoreError(pkgerrors.CodeIndexFailed,
						fmt.Sprintf("failed to populate FTS table %s", name), err)
				}
				log.Printf("store: created FTS table %s in %s", name, time.Since(start).Round(time.Second))
			}
		}
	}
	return nil
}

// buildSpatial creates an R*Tree over tweet coordinates. Point geometries are
// stored as degenerate ranges (min == max per axis), which is the standard
// way to index points with SQLite's rtree module.
func (ix *Indexer) buildSpatial(ctx context.Context) error {
	existing, err := ix.masterNames(ctx, "table")
	if err != nil {
		return err
	}
	if existing["st_tweets"] {
		log.Printf("store: spatial table st_tweets already exists")
		return nil
	}

	start := time.Now()
	create := "CREATE VIRTUAL TABLE st_tweets USING rtree(id, min_lon, max_lon, min_lat, max_lat)"
	if _, err := ix.db.ExecContext(ctx, create); err != nil {
		return pkgerrors.NewStoreError(pkgerrors.CodeIndexFailed,
			"failed to create spatial table st_tweets", err)
	}

	fill := `INSERT INTO st_tweets (id, min_lon, max_lon, min_lat, max_lat)
		SELECT id, lon, lon, lat, lat FROM tweets
		WHERE lon IS NOT NULL AND lat IS NOT NULL`
	if _, err := ix.db.ExecContext(ctx, fill); err != nil {
		return pkgerrors.NewStoreError(pkgerrors.CodeIndexFailed,
			"failed to populate spatial table st_tweets", err)
	}
	log.Printf("store: created spatial table st_tweets in %s", time.Since(start).Round(time.Second))
	return nil
}

// masterNames returns the names of all schema objects of the given type.
func (ix *Indexer) masterNames(ctx context.Context, objectType string) (map[string]bool, error) {
	rows, err := ix.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = ?", objectType)
	if err != nil {
		return nil, fmt.Errorf("store: failed to read schema catalog: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: failed to scan schema catalog: %w", err)
		}
		names[name] = true
	}
	return names, rows.Err()
}
