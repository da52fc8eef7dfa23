// Package media memoizes generated illustrations and narration audio by a
// content-addressed fingerprint, deduplicating concurrent identical requests
// and degrading to a fallback asset when generation fails.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrCacheInconsistency means the cache claimed a hit but the stored value is
// absent. That indicates a bug and must fail loudly; it is never papered over
// with a fallback asset.
var ErrCacheInconsistency = errors.New("media: cache entry present but empty")

// Fingerprint derives the deterministic cache key for a (character,
// scene-or-choice) pair.
func Fingerprint(characterID, subjectID string) string {
	sum := sha256.Sum256([]byte(characterID + "|" + subjectID))
	return hex.EncodeToString(sum[:])
}

// Asset is a resolved media reference.
type Asset struct {
	URL            string
	Cached         bool
	GenerationTime time.Duration
}

// Generator produces a media URL and, when the backend reports one, its
// generation latency.
type Generator func(ctx context.Context) (url string, generationTime time.Duration, err error)

type entry struct {
	url     string
	genTime time.Duration
}

// Cache lives for the process/session lifetime; there is no automatic
// eviction, it is explicitly cleared at session reset.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	flight  singleflight.Group
	log     zerolog.Logger
}

func NewCache(log zerolog.Logger) *Cache {
	return &Cache{entries: make(map[string]entry), log: log}
}

// GetOrGenerate returns the cached asset for fingerprint, or invokes generate
// exactly once even under concurrent identical requests: in-flight calls for
// the same fingerprint are coalesced and every caller receives the same
// result. A generator failure is not cached; when fallback is non-empty the
// caller gets it tagged cached=true with zero generation time instead of an
// error, so media never blocks the narrative.
func (c *Cache) GetOrGenerate(ctx context.Context, fingerprint, fallback string, generate Generator) (Asset, error) {
	c.mu.Lock()
	if e, ok := c.entries[fingerprint]; ok {
		c.mu.Unlock()
		if e.url == "" {
			return Asset{}, ErrCacheInconsistency
		}
		return Asset{URL: e.url, Cached: true, GenerationTime: e.genTime}, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(fingerprint, func() (any, error) {
		// A previous flight may have completed between the miss and now.
		c.mu.Lock()
		if e, ok := c.entries[fingerprint]; ok {
			c.mu.Unlock()
			return Asset{URL: e.url, Cached: true, GenerationTime: e.genTime}, nil
		}
		c.mu.Unlock()

		start := time.Now()
		url, genTime, err := generate(ctx)
		if err != nil {
			return nil, err
		}
		if url == "" {
			return nil, ErrCacheInconsistency
		}
		if genTime <= 0 {
			genTime = time.Since(start)
		}
		c.mu.Lock()
		// Fresh entries are never overwritten outside explicit invalidation.
		if _, exists := c.entries[fingerprint]; !exists {
			c.entries[fingerprint] = entry{url: url, genTime: genTime}
		}
		c.mu.Unlock()
		return Asset{URL: url, Cached: false, GenerationTime: genTime}, nil
	})
	if err != nil {
		if errors.Is(err, ErrCacheInconsistency) || fallback == "" {
			return Asset{}, err
		}
		c.log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("media generation failed, serving fallback")
		return Asset{URL: fallback, Cached: true, GenerationTime: 0}, nil
	}
	return v.(Asset), nil
}

// Invalidate removes one entry so the next request regenerates it.
func (c *Cache) Invalidate(fingerprint string) {
	c.mu.Lock()
	delete(c.entries, fingerprint)
	c.mu.Unlock()
}

// Clear drops every entry. Called at session reset.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Stats reports the entry count and the sorted key list for diagnostics.
func (c *Cache) Stats() (int, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return len(c.entries), keys
}
