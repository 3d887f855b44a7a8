// Package tweet provides field accessors for raw tweet records.
//
// A record is one line of newline-delimited JSON, treated as opaque bytes by
// the chunking engine; accessors here read individual fields without
// re-serializing the record. Records exported from MongoDB wrap large
// integers as {"$numberLong": "..."}; accessors unwrap that encoding
// transparently.
package tweet

import (
	"time"

	"github.com/tidwall/gjson"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
)

const numberLongKey = "$numberLong"

// snowflakeEpochMillis is the Twitter snowflake epoch (2010-11-04T01:42:54.657Z).
const snowflakeEpochMillis = 1288834974657

// StringField returns the string value at a dotted path, or false if the
// field is absent or not a string.
func StringField(record []byte, path string) (string, bool) {
	res := gjson.GetBytes(record, path)
	if res.Type != gjson.String {
		return "", false
	}
	return res.Str, true
}

// Int64Field returns the integer value at a dotted path, accepting either a
// plain JSON number or the wrapped {"$numberLong": "..."} legacy encoding.
func Int64Field(record []byte, path string) (int64, bool) {
	res := gjson.GetBytes(record, path)
	switch {
	case res.Type == gjson.Number:
		return res.Int(), true
	case res.IsObject():
		inner := res.Get(numberLongKey)
		if inner.Exists() {
			return inner.Int(), true
		}
	case res.Type == gjson.String:
		// Some exports stringify ids outright.
		if v := res.Int(); v != 0 || res.Str == "0" {
			return v, true
		}
	}
	return 0, false
}

// UserID extracts the authoring user's id from a record.
func UserID(record []byte) (int64, error) {
	id, ok := Int64Field(record, "user.id")
	if !ok {
		return 0, pkgerrors.NewMalformedRecord("user.id missing or not numeric")
	}
	return id, nil
}

// CreatedAt returns the record's human-readable created_at timestamp string,
// of the form "Wed May 01 12:34:56 +0000 2021".
func CreatedAt(record []byte) (string, error) {
	s, ok := StringField(record, "created_at")
	if !ok {
		return "", pkgerrors.NewMalformedRecord("created_at missing or not a string")
	}
	return s, nil
}

// SnowflakeTime converts a snowflake-style identifier into the UTC creation
// time encoded in its high bits, with millisecond resolution.
func SnowflakeTime(id int64) time.Time {
	millis := (id >> 22) + snowflakeEpochMillis
	return time.UnixMilli(millis).UTC()
}
