// Package chunk implements the repartition-and-merge engine.
//
// Input files of newline-delimited tweet records are divided across a fixed
// pool of workers; each worker routes every record into a label-keyed file
// inside its own private partition directory, and a final merge reconciles
// same-named files across partitions into one output directory.
package chunk

import (
	"fmt"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
)

// SplitPaths divides paths into n contiguous, size-balanced slices, one per
// worker. With len(paths) = q*n + r, the first r slices carry q+1 paths and
// the rest carry q, preserving the original relative order. Slices for excess
// workers (n > len(paths)) are empty; n < 1 is invalid.
func SplitPaths(paths []string, n int) ([][]string, error) {
	if n < 1 {
		return nil, pkgerrors.New(pkgerrors.ErrCategoryChunk, pkgerrors.CodeInvalidJobCount,
			fmt.Sprintf("job count must be >= 1, got %d", n))
	}

	q, r := len(paths)/n, len(paths)%n

	out := make([][]string, n)
	start := 0
	for i := 0; i < n; i++ {
		size := q
		if i < r {
			size++
		}
		out[i] = paths[start : start+size]
		start += size
	}
	return out, nil
}
