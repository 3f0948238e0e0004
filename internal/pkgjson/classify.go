// SPDX-License-Identifier: MPL-2.0

package pkgjson

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tsload/tsload/pkg/fileurl"
	"github.com/tsload/tsload/pkg/format"
)

// Classifier determines the module type governing a file from the nearest
// enclosing package.json. Build one per process and share it.
type Classifier struct {
	cache *Cache
}

// NewClassifier creates a Classifier backed by cache. A nil cache reads the
// OS filesystem.
func NewClassifier(cache *Cache) *Classifier {
	if cache == nil {
		cache = NewCache(nil)
	}
	return &Classifier{cache: cache}
}

// Cache returns the manifest table shared by this classifier.
func (c *Classifier) Cache() *Cache {
	return c.cache
}

// Classify returns format.Module or format.CommonJS for the file named by
// fileURL (a file: URL or an absolute path).
func (c *Classifier) Classify(ctx context.Context, fileURL string) (format.Format, error) {
	desc, err := c.FindPackage(ctx, fileURL)
	if err != nil {
		return format.Unset, err
	}
	if desc == nil {
		return format.CommonJS, nil
	}
	return desc.ModuleType(), nil
}

// FindPackage returns the manifest that forms the package boundary of
// fileURL, or nil when the walk reaches a node_modules directory or the
// filesystem root without finding one.
func (c *Classifier) FindPackage(ctx context.Context, fileURL string) (*Descriptor, error) {
	p, err := fileurl.PathOf(fileURL)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", fileURL, err)
	}

	dir := filepath.Dir(p)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		manifest := filepath.Join(dir, FileName)
		if isNodeModulesManifest(manifest) {
			return nil, nil
		}

		desc, err := c.cache.Lookup(manifest)
		if err != nil {
			return nil, err
		}
		if desc != nil {
			return desc, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// isNodeModulesManifest reports whether manifest is node_modules/package.json,
// the dependency-installation directory rather than a project root.
func isNodeModulesManifest(manifest string) bool {
	return strings.HasSuffix(filepath.ToSlash(manifest), "/node_modules/"+FileName)
}
