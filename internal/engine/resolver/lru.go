package resolver

import (
	"microscope/internal/shared/observability"
	"sync"
)

// answer is one memoized oracle reply, linked into the recency list.
type answer struct {
	key        cacheKey
	found      bool
	prev, next *answer
}

// answerCache keeps the most recently used oracle answers up to a fixed
// capacity. head is the most recent entry, tail the next to be evicted.
type answerCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]*answer
	head     *answer
	tail     *answer
}

func newAnswerCache(capacity int) *answerCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &answerCache{
		capacity: capacity,
		entries:  make(map[cacheKey]*answer, capacity),
	}
}

func (c *answerCache) get(key cacheKey) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.entries[key]
	if !ok {
		observability.OracleCacheLookupsTotal.WithLabelValues("miss").Inc()
		return false, false
	}
	observability.OracleCacheLookupsTotal.WithLabelValues("hit").Inc()
	c.unlink(a)
	c.pushFront(a)
	return a.found, true
}

func (c *answerCache) put(key cacheKey, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.entries[key]; ok {
		a.found = found
		c.unlink(a)
		c.pushFront(a)
		return
	}
	if len(c.entries) >= c.capacity && c.tail != nil {
		evicted := c.tail
		c.unlink(evicted)
		delete(c.entries, evicted.key)
	}
	a := &answer{key: key, found: found}
	c.entries[key] = a
	c.pushFront(a)
}

func (c *answerCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *answerCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*answer, c.capacity)
	c.head, c.tail = nil, nil
}

func (c *answerCache) unlink(a *answer) {
	if a.prev != nil {
		a.prev.next = a.next
	} else {
		c.head = a.next
	}
	if a.next != nil {
		a.next.prev = a.prev
	} else {
		c.tail = a.prev
	}
	a.prev, a.next = nil, nil
}

func (c *answerCache) pushFront(a *answer) {
	a.next = c.head
	if c.head != nil {
		c.head.prev = a
	}
	c.head = a
	if c.tail == nil {
		c.tail = a
	}
}
