// Package assets loads texture images from disk and caches them by
// absolute path.
package assets

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/anthonynsimon/bild/imgio"
	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Manager loads images through a cache.
type Manager struct {
	cache       *Cache
	forceReload bool
	log         *zap.Logger
}

// NewManager creates a new image manager. With forceReload every Load
// reads the file again and refreshes the cached entry.
func NewManager(forceReload bool, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cache:       NewCache(),
		forceReload: forceReload,
		log:         log,
	}
}

// Key returns the cache key of path: its absolute form, plus suffix when
// one file is loaded under several identities.
func Key(path, suffix string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", xperr.IO(err, "resolve %s", path)
	}
	if suffix != "" {
		abs += "#" + suffix
	}
	return abs, nil
}

// Load returns the image at path. PNG, JPEG and TGA files are supported.
func (m *Manager) Load(path string) (image.Image, error) {
	return m.LoadAs(path, "")
}

// LoadAs is Load with a disambiguation suffix on the cache key.
func (m *Manager) LoadAs(path, suffix string) (image.Image, error) {
	key, err := Key(path, suffix)
	if err != nil {
		return nil, err
	}
	if !m.forceReload {
		if img, ok := m.cache.Get(key); ok {
			return img, nil
		}
	}

	img, err := decode(path)
	if err != nil {
		return nil, err
	}
	m.cache.Set(key, img)
	m.log.Debug("image loaded", zap.String("path", path), zap.Stringer("size", img.Bounds().Size()))
	return img, nil
}

func decode(path string) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, xperr.IO(err, "reading %s", path)
		}
		img, err := DecodeTGA(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return img, nil
	}
	img, err := imgio.Open(path)
	if err != nil {
		return nil, xperr.IO(err, "opening image %s", path)
	}
	return img, nil
}

// Stats returns cache statistics.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Close drops every cached image.
func (m *Manager) Close() {
	m.cache.Clear()
}

// Cache is an in-memory image cache.
type Cache struct {
	data map[string]image.Image
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]image.Image),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return img, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = img
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]image.Image)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
