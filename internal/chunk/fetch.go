package chunk

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/geotweets/geotweets/internal/storage"
)

// FetchInputs downloads every record file under prefix from store into
// destDir and returns the local paths, sorted. Only .json and .json.gz
// objects are fetched; anything else under the prefix is ignored.
func FetchInputs(ctx context.Context, store storage.ObjectStorage, prefix, destDir string) ([]string, error) {
	keys, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("chunk: failed to create input directory: %w", err)
	}

	var inputs []string
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") && !strings.HasSuffix(key, ".json.gz") {
			continue
		}
		local := filepath.Join(destDir, path.Base(key))
		if err := store.Download(ctx, key, local); err != nil {
			return nil, err
		}
		log.Printf("chunk: fetched %s", key)
		inputs = append(inputs, local)
	}
	sort.Strings(inputs)
	return inputs, nil
}
