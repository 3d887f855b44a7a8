package chunk

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
)

// writePartition materializes a partition directory with one chunk per label.
func writePartition(t *testing.T, dir string, chunks map[string][]string) {
	t.Helper()

	w, err := NewPartitionWriter(dir)
	if err != nil {
		t.Fatalf("failed to create partition: %v", err)
	}
	for label, records := range chunks {
		for _, r := range records {
			if err := w.Write(label, []byte(r)); err != nil {
				t.Fatalf("write failed: %v", err)
			}
		}
	}
	if err := w.CloseAll(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestMergeMovesUniqueAndConcatenatesShared(t *testing.T) {
	root := t.TempDir()
	p0 := filepath.Join(root, "part-0")
	p1 := filepath.Join(root, "part-1")
	p2 := filepath.Join(root, "part-2")
	dest := filepath.Join(root, "out")

	writePartition(t, p0, map[string][]string{
		"2021-05-01": {`{"id":1}`, `{"id":2}`},
		"only-p0":    {`{"id":3}`},
	})
	writePartition(t, p1, map[string][]string{
		"2021-05-01": {`{"id":4}`},
	})
	writePartition(t, p2, map[string][]string{
		"2021-05-01": {`{"id":5}`},
		"only-p2":    {`{"id":6}`},
	})

	m := &Merger{Partitions: []string{p0, p1, p2}, Dest: dest}
	stats, err := m.Run()
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if stats.Moved != 2 || stats.Concatenated != 1 {
		t.Errorf("stats = %+v, want 2 moved, 1 concatenated", stats)
	}

	// Shared chunk: records appear in partition order.
	got := readChunk(t, filepath.Join(dest, "2021-05-01"+ChunkSuffix))
	want := []string{`{"id":1}`, `{"id":2}`, `{"id":4}`, `{"id":5}`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("shared chunk %v, want %v", got, want)
	}

	// Unique chunks arrive intact.
	if got := readChunk(t, filepath.Join(dest, "only-p0"+ChunkSuffix)); !reflect.DeepEqual(got, []string{`{"id":3}`}) {
		t.Errorf("only-p0 chunk %v", got)
	}
	if got := readChunk(t, filepath.Join(dest, "only-p2"+ChunkSuffix)); !reflect.DeepEqual(got, []string{`{"id":6}`}) {
		t.Errorf("only-p2 chunk %v", got)
	}

	// Sources were consumed.
	for _, dir := range []string{p0, p1, p2} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read %s: %v", dir, err)
		}
		if len(entries) != 0 {
			t.Errorf("partition %s not emptied: %d entries remain", dir, len(entries))
		}
	}
}

func TestMergeKeepSources(t *testing.T) {
	root := t.TempDir()
	p0 := filepath.Join(root, "part-0")
	p1 := filepath.Join(root, "part-1")
	dest := filepath.Join(root, "out")

	writePartition(t, p0, map[string][]string{"a": {`{"id":1}`}})
	writePartition(t, p1, map[string][]string{"a": {`{"id":2}`}, "b": {`{"id":3}`}})

	m := &Merger{Partitions: []string{p0, p1}, Dest: dest, KeepSources: true}
	if _, err := m.Run(); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	// Outputs exist and sources survive.
	if got := readChunk(t, filepath.Join(dest, "a"+ChunkSuffix)); !reflect.DeepEqual(got, []string{`{"id":1}`, `{"id":2}`}) {
		t.Errorf("merged a chunk %v", got)
	}
	for _, p := range []string{
		filepath.Join(p0, "a"+ChunkSuffix),
		filepath.Join(p1, "a"+ChunkSuffix),
		filepath.Join(p1, "b"+ChunkSuffix),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("source %s missing after merge: %v", p, err)
		}
	}
}

func TestMergeConflictDetectedBeforeAnyWork(t *testing.T) {
	root := t.TempDir()
	p0 := filepath.Join(root, "part-0")
	dest := filepath.Join(root, "out")

	writePartition(t, p0, map[string][]string{
		"a": {`{"id":1}`},
		"b": {`{"id":2}`},
	})

	// A stale output for "b" occupies the destination.
	if err := os.MkdirAll(dest, 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dest, "b"+ChunkSuffix)
	if err := os.WriteFile(stale, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	m := &Merger{Partitions: []string{p0}, Dest: dest}
	_, err := m.Run()
	if err == nil {
		t.Fatal("expected merge conflict")
	}
	if pkgerrors.GetCode(err) != pkgerrors.CodeMergeConflict {
		t.Fatalf("expected MERGE_CONFLICT, got %v", err)
	}

	// Nothing was merged, including the non-conflicting chunk.
	if _, err := os.Stat(filepath.Join(dest, "a"+ChunkSuffix)); !os.IsNotExist(err) {
		t.Error("conflicting merge wrote output a")
	}
	data, err := os.ReadFile(stale)
	if err != nil || string(data) != "stale" {
		t.Errorf("stale output modified: %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(p0, "a"+ChunkSuffix)); err != nil {
		t.Errorf("source consumed despite conflict: %v", err)
	}
}

func TestMergeMissingPartitionDirIsSkipped(t *testing.T) {
	root := t.TempDir()
	p0 := filepath.Join(root, "part-0")
	writePartition(t, p0, map[string][]string{"a": {`{"id":1}`}})

	// Workers that saw no records never create their directory.
	m := &Merger{
		Partitions: []string{p0, filepath.Join(root, "never-created")},
		Dest:       filepath.Join(root, "out"),
	}
	stats, err := m.Run()
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if stats.Moved != 1 || stats.Concatenated != 0 {
		t.Errorf("stats = %+v, want 1 moved", stats)
	}
}
