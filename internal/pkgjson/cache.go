// SPDX-License-Identifier: MPL-2.0

package pkgjson

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/spf13/afero"
)

type (
	// Cache is a read-through table of parsed manifests keyed by absolute
	// path. It is safe for concurrent use: a lookup that is already in flight
	// for a path is joined, not repeated, so each path is probed at most once
	// per successful read. Failed reads are not memoized.
	Cache struct {
		fs      afero.Fs
		entries sync.Map // string -> *cacheEntry
	}

	cacheEntry struct {
		mu   sync.Mutex
		done bool
		desc *Descriptor // nil means the file is absent
	}
)

// NewCache creates a Cache reading through fsys. A nil fsys reads the OS
// filesystem.
func NewCache(fsys afero.Fs) *Cache {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Cache{fs: fsys}
}

// Fs returns the filesystem the cache reads through.
func (c *Cache) Fs() afero.Fs {
	return c.fs
}

// Lookup returns the manifest at path, or nil if no file exists there or
// its contents are the JSON literal null.
// A manifest that cannot be parsed yields a *ParseError; any filesystem
// failure other than "not found" is returned as-is.
func (c *Cache) Lookup(path string) (*Descriptor, error) {
	entry, _ := c.loadOrStoreLockedEntry(path)
	defer entry.mu.Unlock()
	if entry.done {
		return entry.desc, nil
	}

	desc, err := c.read(path)
	if err != nil {
		return nil, err
	}
	entry.desc = desc
	entry.done = true
	return desc, nil
}

// Len returns the number of memoized paths, present or absent.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, value any) bool {
		e := value.(*cacheEntry)
		e.mu.Lock()
		if e.done {
			n++
		}
		e.mu.Unlock()
		return true
	})
	return n
}

func (c *Cache) read(path string) (*Descriptor, error) {
	data, err := afero.ReadFile(c.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// loadOrStoreLockedEntry loads an existing entry or creates a new one. The
// returned entry's mutex is locked.
func (c *Cache) loadOrStoreLockedEntry(path string) (*cacheEntry, bool) {
	entry := &cacheEntry{}
	entry.mu.Lock()
	if existing, loaded := c.entries.LoadOrStore(path, entry); loaded {
		e := existing.(*cacheEntry)
		e.mu.Lock()
		return e, true
	}
	return entry, false
}
