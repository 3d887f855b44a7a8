package chunk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
)

// Merger reconciles the per-worker partition directories into one output
// directory. A chunk name appearing in exactly one partition is moved (or
// copied when KeepSources is set); a name appearing in several partitions is
// produced by byte-level concatenation of the partition files in partition
// order. Concatenation is valid because each partition file is a complete
// gzip stream and decompressors process concatenated members as one stream.
type Merger struct {
	// Partitions are the worker partition directories, in job order.
	Partitions []string

	// Dest is the output directory. Created if absent.
	Dest string

	// KeepSources leaves the partition files in place after the merge.
	KeepSources bool
}

// MergeStats summarizes one merge.
type MergeStats struct {
	Moved        int
	Concatenated int
}

// Run performs the merge. Destination collisions are detected up front: if
// any incoming chunk name already exists in Dest, no file is touched and a
// merge-conflict error names the first collision.
func (m *Merger) Run() (MergeStats, error) {
	var stats MergeStats

	sources, err := m.collect()
	if err != nil {
		return stats, err
	}

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	if err := os.MkdirAll(m.Dest, 0755); err != nil {
		return stats, fmt.Errorf("chunk: failed to create output directory: %w", err)
	}

	for _, name := range names {
		dest := filepath.Join(m.Dest, name)
		if _, err := os.Stat(dest); err == nil {
			return stats, pkgerrors.NewMergeConflict(
				fmt.Sprintf("output %s already exists; refusing to merge into a dirty directory", dest))
		} else if !os.IsNotExist(err) {
			return stats, fmt.Errorf("chunk: failed to stat %s: %w", dest, err)
		}
	}

	for _, name := range names {
		paths := sources[name]
		dest := filepath.Join(m.Dest, name)

		if len(paths) == 1 && !m.KeepSources {
			if err := movePath(paths[0], dest); err != nil {
				return stats, err
			}
			stats.Moved++
			continue
		}

		if err := concatenate(paths, dest); err != nil {
			return stats, err
		}
		if len(paths) == 1 {
			stats.Moved++
		} else {
			stats.Concatenated++
		}
		if !m.KeepSources {
			for _, p := range paths {
				if err := os.Remove(p); err != nil {
					return stats, fmt.Errorf("chunk: failed to remove merged source %s: %w", p, err)
				}
			}
		}
	}

	return stats, nil
}

// collect maps each chunk filename to the partition files carrying it, in
// partition order.
func (m *Merger) collect() (map[string][]string, error) {
	sources := make(map[string][]string)
	for _, dir := range m.Partitions {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.ErrCategoryMerge, pkgerrors.CodeSourceMissing,
				fmt.Sprintf("failed to read partition directory %s", dir), err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".gz" {
				continue
			}
			sources[entry.Name()] = append(sources[entry.Name()], filepath.Join(dir, entry.Name()))
		}
	}
	return sources, nil
}

// movePath renames src to dest, falling back to copy-and-remove when the
// rename crosses filesystems.
func movePath(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := concatenate([]string{src}, dest); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("chunk: failed to remove moved source %s: %w", src, err)
	}
	return nil
}

// concatenate writes the raw bytes of each path, in order, to dest. A partial
// destination is removed on failure.
func concatenate(paths []string, dest string) error {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("chunk: failed to create output %s: %w", dest, err)
	}

	for _, p := range paths {
		in, err := os.Open(p)
		if err != nil {
			out.Close()
			os.Remove(dest)
			return pkgerrors.Wrap(pkgerrors.ErrCategoryMerge, pkgerrors.CodeSourceMissing,
				fmt.Sprintf("failed to open merge source %s", p), err)
		}
		if _, err := io.Copy(out, in); err != nil {
			in.Close()
			out.Close()
			os.Remove(dest)
			return fmt.Errorf("chunk: failed to concatenate %s into %s: %w", p, dest, err)
		}
		in.Close()
	}

	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("chunk: failed to close output %s: %w", dest, err)
	}
	return nil
}
