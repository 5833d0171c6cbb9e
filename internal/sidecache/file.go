// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sidecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/figurescout/internal/logging"
	"github.com/pdiddy/figurescout/pkg/types"
)

const (
	defaultDir = ".figurescout"
	cacheFile  = "session.json"
)

// FileCache keeps the snapshot in a single JSON file. Writes go to a temp
// file in the same directory and are renamed into place, so a reader never
// sees a partial snapshot.
type FileCache struct {
	dir    string
	maxAge time.Duration
	log    logging.Logger
}

// NewFileCache returns a FileCache rooted at dir (default ".figurescout").
func NewFileCache(dir string, maxAge time.Duration) *FileCache {
	if dir == "" {
		dir = defaultDir
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &FileCache{dir: dir, maxAge: maxAge, log: logging.NewNop()}
}

// Path returns the snapshot file path.
func (c *FileCache) Path() string {
	return filepath.Join(c.dir, cacheFile)
}

func (c *FileCache) Save(_ context.Context, entry types.CacheEntry) error {
	data, err := encode(entry)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, cacheFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

func (c *FileCache) Load(ctx context.Context) (types.CacheEntry, error) {
	data, err := os.ReadFile(c.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return types.CacheEntry{}, ErrMiss
	}
	if err != nil {
		return types.CacheEntry{}, fmt.Errorf("reading cache file: %w", err)
	}
	entry, err := decode(data, c.maxAge)
	if errors.Is(err, ErrMiss) {
		dropStale(ctx, c.log, c.Clear)
	}
	return entry, err
}

func (c *FileCache) Clear(context.Context) error {
	err := os.Remove(c.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}
