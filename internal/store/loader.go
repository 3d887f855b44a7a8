package store

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tidwall/gjson"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
	"github.com/geotweets/geotweets/pkg/tweet"
)

// DefaultBatchSize is the number of records per insert transaction.
const DefaultBatchSize = 500

// Loader imports newline-delimited tweet archives into SQLite.
type Loader struct {
	db        *sql.DB
	batchSize int
}

// LoadStats reports one imported file.
type LoadStats struct {
	Tweets  int64
	Skipped int64
}

// Open creates or opens the database, applies the schema, and switches to
// bulk-load pragmas. Close restores normal pragmas.
func Open(path string, batchSize int) (*Loader, error) {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, pkgerrors.NewStoreError(pkgerrors.CodeSchemaFailed,
			fmt.Sprintf("failed to open database %s", path), err)
	}

	if _, err := db.Exec(highThroughputPragmas); err != nil {
		db.Close()
		return nil, pkgerrors.NewStoreError(pkgerrors.CodeSchemaFailed,
			"failed to set bulk-load pragmas", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, pkgerrors.NewStoreError(pkgerrors.CodeSchemaFailed,
			"failed to apply schema", err)
	}

	return &Loader{db: db, batchSize: batchSize}, nil
}

// DB exposes the underlying handle for index building.
func (l *Loader) DB() *sql.DB { return l.db }

// Close restores normal pragmas and closes the database.
func (l *Loader) Close() error {
	if _, err := l.db.Exec(normalPragmas); err != nil {
		l.db.Close()
		return fmt.Errorf("store: failed to restore pragmas: %w", err)
	}
	return l.db.Close()
}

// LoadFile imports one newline-delimited JSON file, plain or gzip-compressed.
// Records missing an id or user are skipped with a warning and counted;
// duplicate rows are ignored.
func (l *Loader) LoadFile(ctx context.Context, path string) (LoadStats, error) {
	var stats LoadStats

	f, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("store: failed to open input %s: %w", path, err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return stats, fmt.Errorf("store: failed to decompress input %s: %w", path, err)
		}
		defer gz.Close()
		reader = gz
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	inBatch := 0

	buf := bufio.NewReaderSize(reader, 1<<20)
	line := int64(0)
	for {
		raw, err := buf.ReadBytes('\n')
		if len(raw) > 0 {
			line++
			record := strings.TrimRight(string(raw), "\r\n")
			if record != "" {
				if ierr := l.insertRecord(tx, []byte(record)); ierr != nil {
					if pkgerrors.IsMalformedRecord(ierr) {
						log.Printf("store: skipping record at %s:%d: %v", path, line, ierr)
						stats.Skipped++
					} else {
						tx.Rollback()
						return stats, ierr
					}
				} else {
					stats.Tweets++
					inBatch++
				}
			}
		}
		if inBatch >= l.batchSize {
			if err := tx.Commit(); err != nil {
				return stats, fmt.Errorf("store: failed to commit batch: %w", err)
			}
			tx, err = l.db.BeginTx(ctx, nil)
			if err != nil {
				return stats, fmt.Errorf("store: failed to begin transaction: %w", err)
			}
			inBatch = 0
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			tx.Rollback()
			return stats, fmt.Errorf("store: failed reading input %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("store: failed to commit batch: %w", err)
	}
	return stats, nil
}

func (l *Loader) insertRecord(tx *sql.Tx, record []byte) error {
	tweetID, ok := tweet.Int64Field(record, "id")
	if !ok {
		return pkgerrors.NewMalformedRecord("record has no usable id")
	}
	userID, err := tweet.UserID(record)
	if err != nil {
		return err
	}

	if err := insertUser(tx, record, userID); err != nil {
		return err
	}

	placeID, err := insertPlace(tx, record)
	if err != nil {
		return err
	}

	payload := snappy.Encode(nil, record)
	timestamp := tweet.SnowflakeTime(tweetID).UnixMilli()
	_, err = tx.Exec(`INSERT OR IGNORE INTO tweets
		(id, user_id, place_id, created_at, timestamp, lang, text,
		 quoted_status_id, in_reply_to_status_id, in_reply_to_user_id,
		 lat, lon, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tweetID, userID, placeID,
		strOrNil(record, "created_at"), timestamp,
		strOrNil(record, "lang"), strOrNil(record, "text"),
		intOrNil(record, "quoted_status_id"),
		intOrNil(record, "in_reply_to_status_id"),
		intOrNil(record, "in_reply_to_user_id"),
		floatOrNil(record, "coordinates.coordinates.1"),
		floatOrNil(record, "coordinates.coordinates.0"),
		payload)
	if err != nil {
		return fmt.Errorf("store: failed to insert tweet %d: %w", tweetID, err)
	}

	return insertEntities(tx, record, tweetID)
}

func insertUser(tx *sql.Tx, record []byte, userID int64) error {
	_, err := tx.Exec(`INSERT OR IGNORE INTO users
		(id, name, screen_name, description, verified, geo_enabled,
		 statuses_count, followers_count, friends_count, time_zone, lang, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID,
		strOrNil(record, "user.name"),
		strOrNil(record, "user.screen_name"),
		strOrNil(record, "user.description"),
		boolOrNil(record, "user.verified"),
		boolOrNil(record, "user.geo_enabled"),
		intOrNil(record, "user.statuses_count"),
		intOrNil(record, "user.followers_count"),
		intOrNil(record, "user.friends_count"),
		strOrNil(record, "user.time_zone"),
		strOrNil(record, "user.lang"),
		strOrNil(record, "user.location"))
	if err != nil {
		return fmt.Errorf("store: failed to insert user %d: %w", userID, err)
	}
	return nil
}

// insertPlace stores the record's place, if any, and returns its id. The
// bounding box corners come from the first ring of the GeoJSON polygon:
// index 0 is the minimum corner, index 2 the maximum.
func insertPlace(tx *sql.Tx, record []byte) (interface{}, error) {
	placeID := gjson.GetBytes(record, "place.id")
	if !placeID.Exists() || placeID.Type == gjson.Null {
		return nil, nil
	}

	_, err := tx.Exec(`INSERT OR IGNORE INTO places
		(id, country, full_name, place_type, min_lon, min_lat, max_lon, max_lat)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		placeID.String(),
		strOrNil(record, "place.country"),
		strOrNil(record, "place.full_name"),
		strOrNil(record, "place.place_type"),
		floatOrNil(record, "place.bounding_box.coordinates.0.0.0"),
		floatOrNil(record, "place.bounding_box.coordinates.0.0.1"),
		floatOrNil(record, "place.bounding_box.coordinates.0.2.0"),
		floatOrNil(record, "place.bounding_box.coordinates.0.2.1"))
	if err != nil {
		return nil, fmt.Errorf("store: failed to insert place %s: %w", placeID.String(), err)
	}
	return placeID.String(), nil
}

func insertEntities(tx *sql.Tx, record []byte, tweetID int64) error {
	for _, url := range gjson.GetBytes(record, "entities.urls").Array() {
		_, err := tx.Exec(`INSERT OR IGNORE INTO urls (tweet_id, url, shortened_url) VALUES (?, ?, ?)`,
			tweetID, url.Get("expanded_url").String(), url.Get("url").String())
		if err != nil {
			return fmt.Errorf("store: failed to insert url: %w", err)
		}
	}
	for _, media := range gjson.GetBytes(record, "entities.media").Array() {
		_, err := tx.Exec(`INSERT OR IGNORE INTO media (tweet_id, type, url, shortened_url) VALUES (?, ?, ?, ?)`,
			tweetID, media.Get("type").String(), media.Get("media_url").String(), media.Get("url").String())
		if err != nil {
			return fmt.Errorf("store: failed to insert media: %w", err)
		}
	}
	for _, hashtag := range gjson.GetBytes(record, "entities.hashtags").Array() {
		_, err := tx.Exec(`INSERT OR IGNORE INTO hashtags (tweet_id, text) VALUES (?, ?)`,
			tweetID, hashtag.Get("text").String())
		if err != nil {
			return fmt.Errorf("store: failed to insert hashtag: %w", err)
		}
	}
	for _, mention := range gjson.GetBytes(record, "entities.user_mentions").Array() {
		_, err := tx.Exec(`INSERT OR IGNORE INTO mentions (tweet_id, user_id) VALUES (?, ?)`,
			tweetID, mention.Get("id").Int())
		if err != nil {
			return fmt.Errorf("store: failed to insert mention: %w", err)
		}
	}
	return nil
}

func strOrNil(record []byte, path string) interface{} {
	res := gjson.GetBytes(record, path)
	if !res.Exists() || res.Type == gjson.Null {
		return nil
	}
	return res.String()
}

func intOrNil(record []byte, path string) interface{} {
	if v, ok := tweet.Int64Field(record, path); ok {
		return v
	}
	return nil
}

func floatOrNil(record []byte, path string) interface{} {
	res := gjson.GetBytes(record, path)
	if !res.Exists() || res.Type != gjson.Number {
		return nil
	}
	return res.Float()
}

func boolOrNil(record []byte, path string) interface{} {
	res := gjson.GetBytes(record, path)
	if !res.Exists() || !res.IsBool() {
		return nil
	}
	if res.Bool() {
		return 1
	}
	return 0
}
