// Package thumbs decodes stored images, scales them down for the terminal and keeps
// a bounded cache of the results so neighbouring images show instantly.
package thumbs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/nfnt/resize"
	"golang.org/x/sync/singleflight"
)

// DefaultEntries bounds the cache when no size is given.
const DefaultEntries = 64

// ReadFunc loads encoded image bytes by storage reference.
type ReadFunc func(ctx context.Context, ref string) ([]byte, error)

// Cache holds decoded, downscaled images keyed by storage reference and box size.
type Cache struct {
	read ReadFunc

	mu    sync.Mutex
	lru   *lru.Cache
	group singleflight.Group

	// reads counts backend loads; tests use it to check hits.
	reads int
}

func New(read ReadFunc, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultEntries
	}
	return &Cache{read: read, lru: lru.New(maxEntries)}
}

func key(ref string, w, h uint) string {
	return fmt.Sprintf("%s@%dx%d", ref, w, h)
}

// Get returns ref scaled to fit in a w x h pixel box, loading it on a miss.
// Concurrent misses for the same key share one load.
func (c *Cache) Get(ctx context.Context, ref string, w, h uint) (image.Image, error) {
	k := key(ref, w, h)
	c.mu.Lock()
	if v, ok := c.lru.Get(k); ok {
		c.mu.Unlock()
		return v.(image.Image), nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(k, func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.reads++
		c.mu.Unlock()
		b, err := c.read(ctx, ref)
		if err != nil {
			return nil, err
		}
		src, _, err := image.Decode(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", ref, err)
		}
		out := Fit(src, w, h)
		c.mu.Lock()
		c.lru.Add(k, out)
		c.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

// Warm loads ref into the cache without returning it.
func (c *Cache) Warm(ctx context.Context, ref string, w, h uint) error {
	_, err := c.Get(ctx, ref, w, h)
	return err
}

// Peek returns a cached entry without loading.
func (c *Cache) Peek(ref string, w, h uint) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key(ref, w, h))
	if !ok {
		return nil, false
	}
	return v.(image.Image), true
}

// Has reports whether ref is cached at the given size.
func (c *Cache) Has(ref string, w, h uint) bool {
	_, ok := c.Peek(ref, w, h)
	return ok
}

// Fit scales img down into a w x h box keeping its aspect ratio.
func Fit(img image.Image, w, h uint) image.Image {
	return resize.Thumbnail(w, h, img, resize.Bilinear)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Reads is the number of backend loads performed so far.
func (c *Cache) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
