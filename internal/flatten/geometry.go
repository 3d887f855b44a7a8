package flatten

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spaolacci/murmur3"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkbhex"

	pkgerrors "github.com/geotweets/geotweets/internal/errors"
)

// DefaultGeometryCacheSize is the default capacity of the WKB cache.
const DefaultGeometryCacheSize = 512

// GeometryCache converts GeoJSON geometries to WKB hex strings, memoizing
// results in a bounded LRU keyed by a murmur3-128 digest of the raw geometry
// bytes. Place bounding boxes repeat heavily within an archive, so the cache
// absorbs nearly all conversions after warmup.
type GeometryCache struct {
	cache  *lru.Cache[[2]uint64, string]
	hits   int64
	misses int64
}

// NewGeometryCache creates a cache holding up to size encoded geometries.
func NewGeometryCache(size int) (*GeometryCache, error) {
	if size < 1 {
		size = DefaultGeometryCacheSize
	}
	cache, err := lru.New[[2]uint64, string](size)
	if err != nil {
		return nil, fmt.Errorf("flatten: failed to create geometry cache: %w", err)
	}
	return &GeometryCache{cache: cache}, nil
}

// WKBHex returns the WKB hex encoding of a raw GeoJSON geometry.
func (c *GeometryCache) WKBHex(rawGeoJSON []byte) (string, error) {
	h1, h2 := murmur3.Sum128(rawGeoJSON)
	key := [2]uint64{h1, h2}

	if encoded, ok := c.cache.Get(key); ok {
		c.hits++
		return encoded, nil
	}
	c.misses++

	var g geom.T
	if err := geojson.Unmarshal(rawGeoJSON, &g); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCategoryFlatten, pkgerrors.CodeInvalidGeometry,
			"failed to parse geometry", err)
	}
	encoded, err := wkbhex.Encode(g, wkb.NDR)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCategoryFlatten, pkgerrors.CodeInvalidGeometry,
			"failed to encode geometry", err)
	}

	c.cache.Add(key, encoded)
	return encoded, nil
}

// Hits returns the number of cache hits so far.
func (c *GeometryCache) Hits() int64 { return c.hits }

// Misses returns the number of cache misses so far.
func (c *GeometryCache) Misses() int64 { return c.misses }
