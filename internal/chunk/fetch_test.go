package chunk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/geotweets/geotweets/internal/storage"
)

func TestFetchInputs(t *testing.T) {
	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "bucket"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "upload.json")
	if err := os.WriteFile(src, []byte(`{"id":1}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{
		"archives/2021/b.json",
		"archives/2021/a.json.gz",
		"archives/2021/manifest.txt",
		"archives/2020/old.json",
	} {
		if err := store.Upload(ctx, src, key); err != nil {
			t.Fatalf("upload %s failed: %v", key, err)
		}
	}

	dest := filepath.Join(t.TempDir(), "inputs")
	inputs, err := FetchInputs(ctx, store, "archives/2021", dest)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	want := []string{
		filepath.Join(dest, "a.json.gz"),
		filepath.Join(dest, "b.json"),
	}
	if len(inputs) != len(want) {
		t.Fatalf("inputs = %v, want %v", inputs, want)
	}
	for i, p := range want {
		if inputs[i] != p {
			t.Errorf("inputs[%d] = %s, want %s", i, inputs[i], p)
		}
		data, err := os.ReadFile(p)
		if err != nil || string(data) != `{"id":1}`+"\n" {
			t.Errorf("fetched content of %s = %q, err = %v", p, data, err)
		}
	}
}

func TestFetchInputsEmptyPrefix(t *testing.T) {
	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "bucket"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	inputs, err := FetchInputs(context.Background(), store, "nothing/here", filepath.Join(t.TempDir(), "inputs"))
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(inputs) != 0 {
		t.Errorf("inputs = %v, want none", inputs)
	}
}
