package enrichment

import (
	"container/list"

	"floravision/internal/photo"
)

// Cache maps image paths to records. It is not safe for concurrent use; the
// Enricher confines it to its coordinator goroutine.
type Cache struct {
	max     int
	order   *list.List
	entries map[string]*list.Element
	onEvict func(path string)
}

// NewCache returns a cache holding at most maxEntries records, evicting the
// least recently used. Zero means unbounded.
func NewCache(maxEntries int) *Cache {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Cache{
		max:     maxEntries,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Get returns the record for path and marks it recently used.
func (c *Cache) Get(path string) (*photo.Record, bool) {
	el, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*photo.Record), true
}

// Peek returns the record for path without touching recency.
func (c *Cache) Peek(path string) (*photo.Record, bool) {
	el, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	return el.Value.(*photo.Record), true
}

// Put stores rec under path, replacing any previous record.
func (c *Cache) Put(path string, rec *photo.Record) {
	if el, ok := c.entries[path]; ok {
		el.Value = rec
		c.order.MoveToFront(el)
		return
	}
	c.entries[path] = c.order.PushFront(rec)
	if c.max > 0 {
		for c.order.Len() > c.max {
			oldest := c.order.Back()
			victim := oldest.Value.(*photo.Record).Path
			c.order.Remove(oldest)
			delete(c.entries, victim)
			if c.onEvict != nil {
				c.onEvict(victim)
			}
		}
	}
}

// UpdateLocation replaces the location of an existing record and keeps its
// detections. It reports whether path was cached.
func (c *Cache) UpdateLocation(path string, loc *photo.Location) bool {
	el, ok := c.entries[path]
	if !ok {
		return false
	}
	el.Value.(*photo.Record).Location = loc
	return true
}

// Delete removes path.
func (c *Cache) Delete(path string) bool {
	el, ok := c.entries[path]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.entries, path)
	return true
}

// Reset drops every record.
func (c *Cache) Reset() {
	c.order.Init()
	clear(c.entries)
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Records returns the cached records, most recently used first.
func (c *Cache) Records() []*photo.Record {
	out := make([]*photo.Record, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*photo.Record))
	}
	return out
}
