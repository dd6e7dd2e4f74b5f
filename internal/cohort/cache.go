package cohort

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCacheTTL is how long a cached cohort stays valid before the next
// access re-fetches it from the store.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	cohort    Cohort
	expiresAt time.Time
}

// Cache is a read-through TTL cache over a cohort Store, keyed by cohort id.
//
// Safe for concurrent use. On a read miss the cache fills from the store;
// two callers racing on the same key may both fetch, and the last write
// wins. A store failure is reported as an absent entry so callers degrade
// to non-personalized behavior instead of failing hard.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry

	// now is the clock; tests swap it to simulate expiry.
	now func() time.Time

	metrics *Metrics
}

// NewCache creates a cache in front of store. A zero ttl selects
// DefaultCacheTTL.
func NewCache(store Store, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:   store,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}, nil
}

// SetClock replaces the cache's time source. Intended for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// SetMetrics attaches Prometheus metrics. Optional.
func (c *Cache) SetMetrics(m *Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// Get returns the cohort for cohortID, filling from the store on a miss.
//
// Returns false when the cohort does not exist in the current generation or
// the store is unreachable; the two cases are deliberately
// indistinguishable to callers.
func (c *Cache) Get(cohortID string) (*Cohort, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cohortID]
	now := c.now()
	metrics := c.metrics
	c.mu.RUnlock()

	if ok && now.Before(entry.expiresAt) {
		if metrics != nil {
			metrics.CacheHits.Inc()
		}
		cohort := entry.cohort
		return &cohort, true
	}

	if ok {
		// Expired entry: evict lazily before re-fetching.
		c.mu.Lock()
		if cur, still := c.entries[cohortID]; still && !c.now().Before(cur.expiresAt) {
			delete(c.entries, cohortID)
		}
		c.mu.Unlock()
	}

	if metrics != nil {
		metrics.CacheMisses.Inc()
	}
	return c.fill(cohortID)
}

// fill fetches cohortID from the store and caches it.
func (c *Cache) fill(cohortID string) (*Cohort, bool) {
	gen, err := c.store.LoadLatest()
	if err != nil {
		// Degrade to absent; personalization is optional.
		c.logger.Warn("cohort cache fill failed, serving absent",
			zap.String("cohort_id", cohortID),
			zap.Error(err))
		return nil, false
	}

	var found *Cohort
	for i := range gen.Cohorts {
		if gen.Cohorts[i].ID == cohortID {
			found = &gen.Cohorts[i]
			break
		}
	}
	if found == nil {
		return nil, false
	}

	c.mu.Lock()
	c.entries[cohortID] = cacheEntry{cohort: *found, expiresAt: c.now().Add(c.ttl)}
	size := len(c.entries)
	metrics := c.metrics
	c.mu.Unlock()

	if metrics != nil {
		metrics.CacheSize.Set(float64(size))
	}
	cohort := *found
	return &cohort, true
}

// Warm eagerly loads the current generation into the cache. Run at startup
// and after a discovery run. A missing generation is not an error.
func (c *Cache) Warm() error {
	gen, err := c.store.LoadLatest()
	if err != nil {
		if errors.Is(err, ErrNoGeneration) {
			return nil
		}
		return fmt.Errorf("warming cohort cache: %w", err)
	}
	c.Replace(gen)
	return nil
}

// Replace swaps the cached entries for the given generation's cohorts.
// Entries for cohorts absent from the generation are dropped, since cohort
// ids do not survive across generations.
func (c *Cache) Replace(gen *Generation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry := c.now().Add(c.ttl)
	c.entries = make(map[string]cacheEntry, len(gen.Cohorts))
	for _, cohort := range gen.Cohorts {
		c.entries[cohort.ID] = cacheEntry{cohort: cohort, expiresAt: expiry}
	}
	if c.metrics != nil {
		c.metrics.CacheSize.Set(float64(len(c.entries)))
	}
}

// Len returns the number of cached entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
