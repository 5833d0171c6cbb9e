// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sidecache keeps a local snapshot of the active project's records
// so a restarted client can pick up where it left off without a server
// round trip. The snapshot is advisory: it is overwritten wholesale after
// every state change and is never more current than the in-memory store.
package sidecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/pdiddy/figurescout/internal/logging"
	"github.com/pdiddy/figurescout/pkg/types"
)

// DefaultMaxAge is the freshness window applied when none is configured.
const DefaultMaxAge = 24 * time.Hour

// ErrMiss is returned by Load when there is no usable snapshot: none was
// written, it is older than the freshness window, or it cannot be decoded.
var ErrMiss = errors.New("no fresh cache entry")

// Cache stores one snapshot of the active project.
type Cache interface {
	// Save overwrites the snapshot. The entry's Timestamp is set to now.
	Save(ctx context.Context, entry types.CacheEntry) error
	// Load returns the snapshot if it is within the freshness window.
	Load(ctx context.Context) (types.CacheEntry, error)
	// Clear removes the snapshot. Clearing an empty cache is not an error.
	Clear(ctx context.Context) error
}

// Entry builds a snapshot from a project's identity and current records.
// Counters are recomputed from the records.
func Entry(p types.Project, recs []types.Record) types.CacheEntry {
	c := types.CountRecords(recs)
	return types.CacheEntry{
		Keyword:        p.Keyword,
		Years:          p.Years,
		ProjectID:      p.ID,
		Results:        recs,
		TotalArticles:  c.Total,
		ProcessedCount: c.Processed,
		FulltextCount:  c.Fulltext,
	}
}

// New returns the Cache selected by cfg. The redis backend connects
// immediately and fails if the server does not answer a ping. log receives
// failures to drop a stale snapshot; nil discards them.
func New(cfg types.CacheConfig, log logging.Logger) (Cache, error) {
	if log == nil {
		log = logging.NewNop()
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	switch cfg.Backend {
	case types.CacheFile, "":
		c := NewFileCache(cfg.Dir, maxAge)
		c.log = log
		return c, nil
	case types.CacheRedis:
		client, err := NewRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		c := NewRedisCache(client, maxAge)
		c.log = log
		return c, nil
	case types.CacheNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Nop is a Cache that stores nothing.
type Nop struct{}

func (Nop) Save(context.Context, types.CacheEntry) error { return nil }

func (Nop) Load(context.Context) (types.CacheEntry, error) { return types.CacheEntry{}, ErrMiss }

func (Nop) Clear(context.Context) error { return nil }

// now is swapped by tests to move the clock.
var now = time.Now

func encode(entry types.CacheEntry) ([]byte, error) {
	entry.Timestamp = now().UnixMilli()
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding cache entry: %w", err)
	}
	return data, nil
}

// dropStale clears a snapshot Load rejected. The miss is still reported to
// the caller; a failed clear only leaves the stale snapshot for the next
// Save to overwrite.
func dropStale(ctx context.Context, log logging.Logger, remove func(context.Context) error) {
	if err := remove(ctx); err != nil {
		log.Warn("dropping stale cache entry", logging.Err(err))
	}
}

// decode parses a snapshot and applies the freshness window. Unreadable
// and stale snapshots both yield ErrMiss.
func decode(data []byte, maxAge time.Duration) (types.CacheEntry, error) {
	var entry types.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return types.CacheEntry{}, ErrMiss
	}
	if entry.Timestamp <= 0 || now().Sub(entry.WrittenAt()) > maxAge {
		return types.CacheEntry{}, ErrMiss
	}
	return entry, nil
}
