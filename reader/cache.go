package reader

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/coocood/freecache"

	"github.com/janelia-flyem/blockflow/blockflow"
)

// Cached wraps a Source with an in-memory cache of decoded regions, so
// that halo reads repeated across neighboring chunks on the same worker
// avoid re-decoding the underlying file.  Regions too large for a cache
// entry are passed through uncached.
type Cached struct {
	src   Source
	cache *freecache.Cache
}

// NewCached returns a caching wrapper around src with roughly the given
// number of megabytes of cache.
func NewCached(src Source, mbs int) *Cached {
	if mbs <= 0 {
		mbs = 256
	}
	blockflow.Infof("Created freecache of ~ %d MB for source regions.\n", mbs)
	return &Cached{
		src:   src,
		cache: freecache.NewCache(mbs * blockflow.Mega),
	}
}

func regionKey(scene int, t, z, y, x blockflow.Span) []byte {
	return []byte(fmt.Sprintf("%d|%d:%d|%d:%d|%d:%d|%d:%d",
		scene, t.Start, t.Stop, z.Start, z.Stop, y.Start, y.Stop, x.Start, x.Stop))
}

// --- Source implementation ------

func (c *Cached) Extents() blockflow.TCZYX {
	return c.src.Extents()
}

func (c *Cached) TotalBounds() Rect {
	return c.src.TotalBounds()
}

func (c *Cached) SceneBounds(scene int) (Rect, bool) {
	return c.src.SceneBounds(scene)
}

func (c *Cached) ReadRegion(ctx context.Context, scene int, t, z, y, x blockflow.Span) ([]uint16, error) {
	key := regionKey(scene, t, z, y, x)
	if cached, err := c.cache.Get(key); err == nil {
		data := make([]uint16, len(cached)/blockflow.BytesPerElement)
		for i := range data {
			data[i] = binary.LittleEndian.Uint16(cached[i*2:])
		}
		return data, nil
	} else if err != freecache.ErrNotFound {
		blockflow.Errorf("Error in getting region %s from cache: %v\n", key, err)
	}

	data, err := c.src.ReadRegion(ctx, scene, t, z, y, x)
	if err != nil {
		return nil, err
	}

	encoded := make([]byte, len(data)*blockflow.BytesPerElement)
	for i, v := range data {
		binary.LittleEndian.PutUint16(encoded[i*2:], v)
	}
	if err := c.cache.Set(key, encoded, 0); err != nil {
		// Entry exceeds what freecache will hold; serve uncached.
		blockflow.Debugf("Unable to cache region %s (%d bytes): %v\n", key, len(encoded), err)
	}
	return data, nil
}
