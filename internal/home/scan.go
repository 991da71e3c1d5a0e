package home

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ListRegularFiles returns the absolute paths of the regular files directly
// inside dir, sorted.
func ListRegularFiles(dir string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("home: resolve %s: %w", dir, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("home: scan %s: %w", abs, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		out = append(out, filepath.Join(abs, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// DirCache is a process-scoped cache of one directory listing.
type DirCache struct {
	dir string

	mu      sync.Mutex
	entries []string
}

func NewDirCache(dir string) *DirCache {
	return &DirCache{dir: dir}
}

func (c *DirCache) Dir() string { return c.dir }

// Entries returns the cached listing unless it is empty or reload is set.
func (c *DirCache) Entries(reload bool) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !reload && len(c.entries) > 0 {
		return append([]string(nil), c.entries...), nil
	}
	entries, err := ListRegularFiles(c.dir)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return append([]string(nil), entries...), nil
}

// Invalidate drops the cached listing.
func (c *DirCache) Invalidate() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}
