package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
)

const sampleTweet = `{"id":1388253229822914560,"created_at":"Fri Apr 30 23:59:59 +0000 2021",` +
	`"text":"sunset over the bay #sf","lang":"en",` +
	`"user":{"id":42,"name":"Alice","screen_name":"alice","description":"mapper","verified":true,` +
	`"statuses_count":100,"followers_count":10,"friends_count":20},` +
	`"place":{"id":"5a110d312052166f","country":"United States","full_name":"San Francisco, CA",` +
	`"place_type":"city","bounding_box":{"type":"Polygon","coordinates":[[[-122.51,37.70],[-122.35,37.70],[-122.35,37.83],[-122.51,37.83]]]}},` +
	`"coordinates":{"type":"Point","coordinates":[-122.41,37.77]},` +
	`"entities":{"hashtags":[{"text":"sf"}],"urls":[{"url":"https://t.co/x","expanded_url":"https://example.com"}],` +
	`"user_mentions":[{"id":7,"screen_name":"bob"}]}}`

func writeArchive(t *testing.T, dir string, records []string) string {
	t.Helper()

	path := filepath.Join(dir, "input.json.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	for _, r := range records {
		if _, err := gz.Write([]byte(r + "\n")); err != nil {
			t.Fatal(err)
		}
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, []string{
		sampleTweet,
		`{"text":"no id"}`,
	})

	loader, err := Open(filepath.Join(dir, "tweets.db"), 0)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer loader.Close()

	stats, err := loader.LoadFile(context.Background(), archive)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if stats.Tweets != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 1 tweet, 1 skipped", stats)
	}

	db := loader.DB()

	var userName string
	var verified int
	if err := db.QueryRow("SELECT name, verified FROM users WHERE id = 42").Scan(&userName, &verified); err != nil {
		t.Fatalf("user row missing: %v", err)
	}
	if userName != "Alice" || verified != 1 {
		t.Errorf("user row = %q/%d", userName, verified)
	}

	var country string
	var minLon float64
	if err := db.QueryRow("SELECT country, min_lon FROM places WHERE id = '5a110d312052166f'").Scan(&country, &minLon); err != nil {
		t.Fatalf("place row missing: %v", err)
	}
	if country != "United States" || minLon != -122.51 {
		t.Errorf("place row = %q/%f", country, minLon)
	}

	var timestamp int64
	var lat, lon float64
	var payload []byte
	err = db.QueryRow("SELECT timestamp, lat, lon, payload FROM tweets WHERE id = 1388253229822914560").
		Scan(&timestamp, &lat, &lon, &payload)
	if err != nil {
		t.Fatalf("tweet row missing: %v", err)
	}
	if lat != 37.77 || lon != -122.41 {
		t.Errorf("coordinates = %f/%f", lat, lon)
	}
	// Snowflake-derived timestamp: (id >> 22) + epoch.
	if want := int64(1388253229822914560>>22) + 1288834974657; timestamp != want {
		t.Errorf("timestamp = %d, want %d", timestamp, want)
	}

	// Payload round-trips to the original record.
	decoded, err := snappy.Decode(nil, payload)
	if err != nil {
		t.Fatalf("payload not snappy-encoded: %v", err)
	}
	if string(decoded) != sampleTweet {
		t.Error("payload does not match original record")
	}

	for _, q := range []struct {
		query string
		want  int
	}{
		{"SELECT COUNT(*) FROM hashtags WHERE text = 'sf'", 1},
		{"SELECT COUNT(*) FROM urls WHERE url = 'https://example.com'", 1},
		{"SELECT COUNT(*) FROM mentions WHERE user_id = 7", 1},
	} {
		var n int
		if err := db.QueryRow(q.query).Scan(&n); err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if n != q.want {
			t.Errorf("%s = %d, want %d", q.query, n, q.want)
		}
	}
}

func TestLoadFileIgnoresDuplicates(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, []string{sampleTweet})

	loader, err := Open(filepath.Join(dir, "tweets.db"), 0)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer loader.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := loader.LoadFile(ctx, archive); err != nil {
			t.Fatalf("load %d failed: %v", i, err)
		}
	}

	var n int
	if err := loader.DB().QueryRow("SELECT COUNT(*) FROM tweets").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("tweets count = %d, want 1", n)
	}
}

func TestIndexerBuildAll(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, []string{sampleTweet})

	loader, err := Open(filepath.Join(dir, "tweets.db"), 0)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer loader.Close()

	ctx := context.Background()
	if _, err := loader.LoadFile(ctx, archive); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	ix := NewIndexer(loader.DB())
	if err := ix.BuildAll(ctx); err != nil {
		t.Fatalf("index build failed: %v", err)
	}

	// Full-text search finds the tweet through both tokenizers.
	for _, table := range []string{"fts_tweets_text_simple", "fts_tweets_text_porter"} {
		var n int
		if err := loader.DB().QueryRow(
			"SELECT COUNT(*) FROM "+table+" WHERE content MATCH 'sunset'").Scan(&n); err != nil {
			t.Fatalf("FTS query on %s failed: %v", table, err)
		}
		if n != 1 {
			t.Errorf("%s MATCH 'sunset' = %d, want 1", table, n)
		}
	}

	// Spatial lookup finds the tweet by bounding box.
	var n int
	err = loader.DB().QueryRow(`SELECT COUNT(*) FROM st_tweets
		WHERE min_lon >= -123 AND max_lon <= -122 AND min_lat >= 37 AND max_lat <= 38`).Scan(&n)
	if err != nil {
		t.Fatalf("spatial query failed: %v", err)
	}
	if n != 1 {
		t.Errorf("spatial query = %d, want 1", n)
	}

	// Rebuilding is a no-op, not an error.
	if err := ix.BuildAll(ctx); err != nil {
		t.Fatalf("second index build failed: %v", err)
	}
}
