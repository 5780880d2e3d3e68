package services

import (
	"os"
	"sync"
	"time"
)

type cacheEntry struct {
	modTime time.Time
	size    int64
	value   interface{}
}

// fileCache memoises decoded files until their size or mtime changes
type fileCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newFileCache() *fileCache {
	return &fileCache{entries: make(map[string]cacheEntry)}
}

func (c *fileCache) get(path string, info os.FileInfo) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[path]
	if !ok || !e.modTime.Equal(info.ModTime()) || e.size != info.Size() {
		return nil, false
	}
	return e.value, true
}

func (c *fileCache) put(path string, info os.FileInfo, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = cacheEntry{modTime: info.ModTime(), size: info.Size(), value: value}
}

func (c *fileCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cachedRead returns the decoded contents of path, reusing the previous
// decode while the file is unchanged. os.ErrNotExist is passed through.
func cachedRead[T any](c *fileCache, path string, read func(string) (T, error)) (T, error) {
	var zero T

	info, err := os.Stat(path)
	if err != nil {
		return zero, err
	}
	if v, ok := c.get(path, info); ok {
		return v.(T), nil
	}

	v, err := read(path)
	if err != nil {
		return zero, err
	}
	c.put(path, info, v)
	return v, nil
}
