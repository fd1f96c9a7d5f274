package feed

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/hyperjump/yomu/internal/metrics"
	"github.com/hyperjump/yomu/internal/models"
)

// responseCache holds assembled responses. Keys embed a catalog generation
// and a per-user generation; bumping either makes old entries unreachable
// until they expire or are evicted.
//
// User generations come from one sequence, so a value is never reused. A
// user generation is forgotten once it is older than the TTL: every entry
// keyed before that bump has expired by then, and entries keyed with the
// forgotten value are unreachable.
type responseCache struct {
	cache      *ristretto.Cache[string, *models.FeedResponse]
	ttl        time.Duration
	catalogGen atomic.Uint64
	now        func() time.Time

	mu        sync.Mutex
	userSeq   uint64
	userGens  map[string]userGeneration
	lastSweep time.Time
}

type userGeneration struct {
	gen    uint64
	bumped time.Time
}

func newResponseCache(maxEntries int64, ttl time.Duration) (*responseCache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *models.FeedResponse]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create feed cache: %w", err)
	}
	return &responseCache{cache: c, ttl: ttl, now: time.Now, userGens: make(map[string]userGeneration)}, nil
}

func (c *responseCache) userGen(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userGens[userID].gen
}

func (c *responseCache) key(kind, userID string, parts ...any) string {
	k := fmt.Sprintf("%s|%d|%s|%d", kind, c.catalogGen.Load(), userID, c.userGen(userID))
	for _, p := range parts {
		k += fmt.Sprintf("|%v", p)
	}
	return k
}

// get returns a copy of the cached response marked Cached.
func (c *responseCache) get(key string) (*models.FeedResponse, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if !ok || v == nil {
		metrics.FeedCacheMisses.Inc()
		return nil, false
	}
	metrics.FeedCacheHits.Inc()
	out := *v
	out.Cached = true
	return &out, true
}

func (c *responseCache) set(key string, resp *models.FeedResponse) {
	if c.ttl <= 0 {
		return
	}
	stored := *resp
	c.cache.SetWithTTL(key, &stored, 1, c.ttl)
}

func (c *responseCache) invalidateUser(userID string) {
	if c.ttl <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastSweep) >= c.ttl {
		for id, g := range c.userGens {
			if now.Sub(g.bumped) > c.ttl {
				delete(c.userGens, id)
			}
		}
		c.lastSweep = now
	}
	c.userSeq++
	c.userGens[userID] = userGeneration{gen: c.userSeq, bumped: now}
}

func (c *responseCache) trackedUsers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.userGens)
}

func (c *responseCache) invalidateAll() {
	c.catalogGen.Add(1)
}

func (c *responseCache) close() {
	c.cache.Close()
}
