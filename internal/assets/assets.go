// Package assets loads and caches the files a scene is built from.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Faultbox/scenebake/pkg/formats"
	"github.com/Faultbox/scenebake/pkg/scene"
)

// ErrUnknownFormat is returned for mesh files with an unsupported extension.
var ErrUnknownFormat = errors.New("unknown mesh format")

// Manager reads texture images and parses mesh sources. Results are cached
// per path and reused while the file's size and modification time are
// unchanged, so repeated rebuilds only touch files that were edited.
type Manager struct {
	cache *Cache
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// ReadFile returns the contents of path.
func (m *Manager) ReadFile(path string) ([]byte, error) {
	e, err := m.load(path, func(data []byte) (*scene.Mesh, error) { return nil, nil })
	if err != nil {
		return nil, err
	}
	return e.data, nil
}

// LoadMesh parses the mesh file at path, choosing the parser by extension.
// The returned mesh is shared between callers and must not be modified.
func (m *Manager) LoadMesh(path string) (*scene.Mesh, error) {
	var parse func([]byte) (*scene.Mesh, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		parse = func(data []byte) (*scene.Mesh, error) {
			s, err := formats.ParseSTL(data)
			if err != nil {
				return nil, err
			}
			return s.Mesh(), nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	e, err := m.load(path, parse)
	if err != nil {
		return nil, err
	}
	if e.mesh == nil {
		// Cached by ReadFile without parsing.
		mesh, err := parse(e.data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		e.mesh = mesh
		m.cache.Set(path, e)
	}
	return e.mesh, nil
}

func (m *Manager) load(path string, parse func([]byte) (*scene.Mesh, error)) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}
	if e, ok := m.cache.Get(path); ok && e.Size == info.Size() && e.ModTime.Equal(info.ModTime()) {
		return e, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	mesh, err := parse(data)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	e := Entry{Size: info.Size(), ModTime: info.ModTime(), data: data, mesh: mesh}
	m.cache.Set(path, e)
	return e, nil
}

// Stats returns cache statistics.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Clear drops every cached file.
func (m *Manager) Clear() {
	m.cache.Clear()
}

// Entry is a cached file together with the stat data it was read with.
type Entry struct {
	Size    int64
	ModTime time.Time

	data []byte
	mesh *scene.Mesh
}

// Cache is a simple in-memory cache for loaded assets.
type Cache struct {
	data map[string]Entry
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]Entry),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return e, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = e
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]Entry)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
