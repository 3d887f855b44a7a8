// Package store loads tweet archives into an indexed SQLite database.
package store

// Schema is the relational layout for imported tweet archives. Entity tables
// (urls, media, hashtags, mentions) hang off tweets by tweet_id. The tweets
// payload column carries a snappy-compressed copy of the original record so
// the full JSON can be recovered without the source archives.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	name TEXT,
	screen_name TEXT,
	description TEXT,
	verified INTEGER,
	geo_enabled INTEGER,
	statuses_count INTEGER,
	followers_count INTEGER,
	friends_count INTEGER,
	time_zone TEXT,
	lang TEXT,
	location TEXT
);

CREATE TABLE IF NOT EXISTS places (
	id TEXT PRIMARY KEY,
	country TEXT,
	full_name TEXT,
	place_type TEXT,
	min_lon REAL,
	min_lat REAL,
	max_lon REAL,
	max_lat REAL
);

CREATE TABLE IF NOT EXISTS tweets (
	id INTEGER PRIMARY KEY,
	user_id INTEGER,
	place_id TEXT,
	created_at TEXT,
	timestamp INTEGER,
	lang TEXT,
	text TEXT,
	quoted_status_id INTEGER,
	in_reply_to_status_id INTEGER,
	in_reply_to_user_id INTEGER,
	lat REAL,
	lon REAL,
	payload BLOB
);

CREATE TABLE IF NOT EXISTS urls (
	tweet_id INTEGER,
	url TEXT,
	shortened_url TEXT
);

CREATE TABLE IF NOT EXISTS media (
	tweet_id INTEGER,
	type TEXT,
	url TEXT,
	shortened_url TEXT
);

CREATE TABLE IF NOT EXISTS hashtags (
	tweet_id INTEGER,
	text TEXT
);

CREATE TABLE IF NOT EXISTS mentions (
	tweet_id INTEGER,
	user_id INTEGER
);
`

// Bulk-load pragmas trade durability for throughput; a crashed import is
// rerun from the source archives.
const highThroughputPragmas = `
PRAGMA synchronous = OFF;
PRAGMA journal_mode = OFF;
`

const normalPragmas = `
PRAGMA synchronous = NORMAL;
PRAGMA journal_mode = DELETE;
`
