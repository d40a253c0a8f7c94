package isd

import (
	"context"
	"fmt"
	"sync"

	"github.com/pedalwatch/ride-weather-etl/internal/domain"
	"github.com/pedalwatch/ride-weather-etl/internal/observability"
)

// Source is the station-year fetch contract the cache decorates. *Client
// satisfies it.
type Source interface {
	FetchYear(ctx context.Context, station string, year int) ([]domain.RawWeatherObservation, error)
}

// CachedSource wraps a Source with an in-memory LRU cache keyed by
// station-year. Yearly archive files are immutable once published, so
// cached results never go stale within a process lifetime.
type CachedSource struct {
	inner   Source
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a weather source.
func NewCachedSource(inner Source, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSource) FetchYear(ctx context.Context, station string, year int) ([]domain.RawWeatherObservation, error) {
	key := fmt.Sprintf("%s|%d", station, year)
	if rows, ok := c.cache.get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return rows, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	rows, err := c.inner.FetchYear(ctx, station, year)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, rows)
	return rows, nil
}

// lruCache is a small thread-safe LRU cache for station-year row sets.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.RawWeatherObservation
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.RawWeatherObservation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.RawWeatherObservation) {
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
