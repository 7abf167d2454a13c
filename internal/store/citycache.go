package store

import (
	"context"
	"strings"
	"sync"

	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// CityResolver resolves a provider-reported city name to a reference city.
// A miss is (nil, nil).
type CityResolver interface {
	ByName(ctx context.Context, name string) (*domain.City, error)
}

// CachedCityResolver wraps a CityResolver with an in-memory LRU cache. The
// ingest path resolves the same handful of city names thousands of times per
// cycle; hitting the database once per distinct name is plenty.
type CachedCityResolver struct {
	inner CityResolver
	cache *lruCache
}

// NewCachedCityResolver creates a cache decorator around a resolver.
func NewCachedCityResolver(inner CityResolver, maxEntries int) *CachedCityResolver {
	return &CachedCityResolver{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedCityResolver) ByName(ctx context.Context, name string) (*domain.City, error) {
	key := strings.ToLower(name)
	if city, ok := c.cache.get(key); ok {
		return city, nil
	}
	city, err := c.inner.ByName(ctx, name)
	if err != nil {
		return nil, err
	}
	// Only cache hits so a city added to the reference table mid-run is
	// picked up without a restart.
	if city != nil {
		c.cache.put(key, city)
	}
	return city, nil
}

// lruCache is a simple thread-safe LRU cache for city lookups.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *domain.City
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*domain.City, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *domain.City) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
