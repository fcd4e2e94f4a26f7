package enrich

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nertexqq/giftwatch/internal/marketplace"
)

// Scope distinguishes a gift-level floor from a model-level floor within
// the same cache, per spec §3's FloorCache key shape.
type Scope string

const (
	ScopeGift  Scope = "gift"
	ScopeModel Scope = "model"
)

type cacheKey struct {
	mp         marketplace.Name
	scope      Scope
	collection string
	model      string
}

type cacheEntry struct {
	value     decimal.Decimal
	insertedAt time.Time
}

// FloorCache is a TTL-only cache: entries are immutable after insertion
// and simply expire, matching spec §3's "invalidated by TTL only" rule.
type FloorCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[cacheKey]cacheEntry
	now func() time.Time
}

// DefaultTTL is the 300s default from spec §3.
const DefaultTTL = 300 * time.Second

func NewFloorCache(ttl time.Duration) *FloorCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FloorCache{ttl: ttl, m: make(map[cacheKey]cacheEntry), now: time.Now}
}

func (c *FloorCache) Get(mp marketplace.Name, scope Scope, collection, model string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := cacheKey{mp, scope, collection, model}
	entry, ok := c.m[key]
	if !ok {
		return decimal.Zero, false
	}
	if c.now().Sub(entry.insertedAt) > c.ttl {
		return decimal.Zero, false
	}
	return entry.value, true
}

func (c *FloorCache) Set(mp marketplace.Name, scope Scope, collection, model string, value decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{mp, scope, collection, model}
	c.m[key] = cacheEntry{value: value, insertedAt: c.now()}
}
