package flatten

// DefaultFields is the standard column set for flattened tweet archives.
// Nesting is indicated by dots; numeric segments index into arrays.
var DefaultFields = []string{
	"id",
	"user.id",
	"user.name",
	"user.screen_name",
	"user.description",
	"user.verified",
	"user.geo_enabled",
	"user.statuses_count",
	"user.followers_count",
	"user.friends_count",
	"user.time_zone",
	"user.lang",
	"user.location",
	"place.id",
	"place.country",
	"place.full_name",
	"place.place_type",
	"place.bounding_box",
	"entities.urls",
	"entities.media",
	"entities.hashtags",
	"entities.user_mentions",
	"text",
	"created_at",
	"lang",
	"quoted_status_id",
	"in_reply_to_status_id",
	"in_reply_to_user_id",
	"coordinates.coordinates.0",
	"coordinates.coordinates.1",
}

// numberLongFields are id-bearing fields that may arrive wrapped in MongoDB's
// {"$numberLong": "..."} extended-JSON form.
var numberLongFields = map[string]bool{
	"id":                    true,
	"user.id":               true,
	"quoted_status_id":      true,
	"in_reply_to_status_id": true,
	"in_reply_to_user_id":   true,
}

// geometryFields hold GeoJSON geometries that are emitted as WKB hex strings.
var geometryFields = map[string]bool{
	"place.bounding_box": true,
}
