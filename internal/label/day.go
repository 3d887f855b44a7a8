package label

import (
	"fmt"
	"strings"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
	"github.com/geotweets/geotweets/pkg/tweet"
)

// months maps created_at month tokens to two-digit month numbers. The
// timestamp format is fixed ("Wed May 01 12:34:56 +0000 2021"), so a plain
// lookup is both faster and stricter than time.Parse.
var months = map[string]string{
	"Jan": "01", "Feb": "02", "Mar": "03", "Apr": "04", "May": "05",
	"Jun": "06", "Jul": "07", "Aug": "08", "Sep": "09", "Oct": "10",
	"Nov": "11", "Dec": "12",
}

// DayLabeler labels records by the ISO calendar day of their created_at
// field.
type DayLabeler struct{}

// Label extracts created_at and emits a YYYY-MM-DD label.
func (DayLabeler) Label(record []byte) (string, error) {
	createdAt, err := tweet.CreatedAt(record)
	if err != nil {
		return "", err
	}

	// "Weekday Mon DD HH:MM:SS +ZZZZ YYYY"
	parts := strings.Fields(createdAt)
	if len(parts) < 4 {
		return "", pkgerrors.NewMalformedRecord(
			fmt.Sprintf("created_at %q has too few fields", createdAt))
	}

	month, ok := months[parts[1]]
	if !ok {
		return "", pkgerrors.NewMalformedRecord(
			fmt.Sprintf("created_at %q has unrecognized month token %q", createdAt, parts[1]))
	}

	year := parts[len(parts)-1]
	day := parts[2]
	return year + "-" + month + "-" + day, nil
}

// Name implements Labeler.
func (DayLabeler) Name() string { return string(StrategyDay) }
