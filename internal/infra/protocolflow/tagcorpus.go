package protocolflow

import (
	"context"
	"sync"
	"time"

	"ekamcp/internal/domain"
)

// corpusCache holds the process-wide tag corpus. Tags gate every protocol
// workflow, so the corpus is fetched once and shared across sessions; the
// mutex also serializes concurrent first fetches.
type corpusCache struct {
	mu        sync.Mutex
	api       ProtocolAPI
	ttl       time.Duration
	tags      []domain.Tag
	fetchedAt time.Time
}

func newCorpusCache(api ProtocolAPI, ttl time.Duration) *corpusCache {
	return &corpusCache{api: api, ttl: ttl}
}

func (c *corpusCache) get(ctx context.Context) ([]domain.Tag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tags != nil && !c.stale() {
		return c.tags, nil
	}

	tags, err := c.api.SupportedTags(ctx)
	if err != nil {
		// Serve a stale corpus over failing the call outright.
		if c.tags != nil {
			return c.tags, nil
		}
		return nil, err
	}
	c.tags = tags
	c.fetchedAt = time.Now()
	return c.tags, nil
}

// peek returns the cached corpus without fetching.
func (c *corpusCache) peek() ([]domain.Tag, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tags == nil {
		return nil, false
	}
	return c.tags, true
}

func (c *corpusCache) stale() bool {
	return c.ttl > 0 && time.Since(c.fetchedAt) > c.ttl
}
