// Package label derives partition labels from raw tweet records.
//
// A label is a short string that determines which output file a record is
// routed to. Labeling is a pure function of the record bytes: two records
// with equal labels always land in the same file, and the same record always
// produces the same label regardless of which worker processes it.
package label

import (
	"fmt"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
)

// Strategy selects how a label is derived from a record.
type Strategy string

const (
	// StrategyDay labels records by the calendar day of their created_at
	// timestamp, e.g. "2021-05-01".
	StrategyDay Strategy = "day"

	// StrategyHash labels records by a truncated cryptographic hash of the
	// authoring user's id, e.g. "a3f".
	StrategyHash Strategy = "hash"
)

// DefaultHashLength is the number of hex characters kept from the user-id
// hash when no explicit length is configured.
const DefaultHashLength = 3

// Config holds the labeling configuration.
type Config struct {
	Strategy Strategy `json:"strategy" yaml:"strategy"`

	// HashLength is the number of hex characters in hash-bucket labels.
	// Only used by StrategyHash.
	HashLength int `json:"hash_length" yaml:"hash_length"`
}

// Labeler maps one record to its partition label.
type Labeler interface {
	// Label derives the partition label for a record. It returns a
	// malformed-record error when a required field is absent or of an
	// unexpected shape; it never silently mislabels.
	Label(record []byte) (string, error)

	// Name identifies the strategy, for logs and run reports.
	Name() string
}

// New constructs the Labeler for a configuration. The strategy set is closed:
// unknown strategies are rejected here, at configuration time, rather than
// discovered per record.
func New(cfg Config) (Labeler, error) {
	switch cfg.Strategy {
	case StrategyDay, "":
		return DayLabeler{}, nil
	case StrategyHash:
		length := cfg.HashLength
		if length == 0 {
			length = DefaultHashLength
		}
		return NewHashLabeler(length)
	default:
		return nil, pkgerrors.New(pkgerrors.ErrCategoryLabel, pkgerrors.CodeUnknownStrategy,
			fmt.Sprintf("unknown labeling strategy %q", cfg.Strategy))
	}
}
