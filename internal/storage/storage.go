// Package storage abstracts the object store that chunked archives are
// published to and recovered from. Implementations cover S3 and the local
// filesystem.
package storage

import (
	"context"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
)

// ObjectStorage abstracts object storage operations on archive files.
// Keys use forward slashes regardless of platform.
type ObjectStorage interface {
	// Upload copies a local file to objectPath in the store.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies the object at objectPath to a local file. Returns an
	// object-not-found error when the key does not exist.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists reports whether an object is present.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all keys under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// IsNotFound reports whether err marks a missing object.
func IsNotFound(err error) bool {
	return pkgerrors.GetCode(err) == pkgerrors.CodeObjectNotFound
}
