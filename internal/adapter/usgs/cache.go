package usgs

import (
	"sync"

	"github.com/couchcryptid/quake-region-etl/internal/domain"
)

// etagCache remembers the last catalog snapshot together with its ETag.
// A snapshot with no ETag is never cached: without a validator the next
// request cannot be made conditional.
type etagCache struct {
	mu     sync.Mutex
	etag   string
	cached []domain.Event
}

func (c *etagCache) tag() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.etag
}

// events returns a copy of the cached snapshot, so callers can never reach
// back into the cache through a shared slice.
func (c *etagCache) events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Event, len(c.cached))
	copy(out, c.cached)
	return out
}

func (c *etagCache) store(etag string, events []domain.Event) {
	if etag == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.etag = etag
	c.cached = make([]domain.Event, len(events))
	copy(c.cached, events)
}
