package label

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
	"github.com/geotweets/geotweets/pkg/tweet"
)

// HashLabeler labels records by a truncated SHA-256 hash of the authoring
// user's id. The id is encoded as 8 big-endian bytes before hashing so the
// bucket assignment is identical across processes and machine architectures;
// that stability is what makes the parallel merge correct without any
// cross-worker coordination.
type HashLabeler struct {
	length int
}

// NewHashLabeler creates a hash-bucket labeler emitting labels of the given
// number of hex characters.
func NewHashLabeler(length int) (HashLabeler, error) {
	if length < 1 || length > sha256.Size*2 {
		return HashLabeler{}, pkgerrors.New(pkgerrors.ErrCategoryLabel, pkgerrors.CodeInvalidHashLength,
			fmt.Sprintf("hash length must be in [1, %d], got %d", sha256.Size*2, length))
	}
	return HashLabeler{length: length}, nil
}

// Label extracts user.id (plain integer or {"$numberLong": "..."}) and emits
// the first length hex characters of SHA-256 over its fixed-width encoding.
func (h HashLabeler) Label(record []byte) (string, error) {
	id, err := tweet.UserID(record)
	if err != nil {
		return "", err
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	sum := sha256.Sum256(buf[:])

	return hex.EncodeToString(sum[:])[:h.length], nil
}

// Name implements Labeler.
func (h HashLabeler) Name() string { return string(StrategyHash) }

// Length returns the configured label width in hex characters.
func (h HashLabeler) Length() int { return h.length }
