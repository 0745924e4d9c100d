package services

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/askdb-inc/askdb-engine/pkg/config"
	"github.com/askdb-inc/askdb-engine/pkg/models"
)

// Fingerprint builds the cache key for a question: whitespace-folded,
// lowercased question text bound to the schema version so a re-sync
// invalidates every cached answer.
func Fingerprint(question string, version models.SchemaVersion) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(question), " "))
	return normalized + "|" + string(version)
}

// cacheEntry pairs an answer with its expiry.
type cacheEntry struct {
	answer  Answer
	expires time.Time
}

// answerCache is the optional fingerprint cache. Successful answers
// only; TTL-bounded; the singleflight group collapses duplicate
// concurrent questions to one generation per fingerprint.
type answerCache struct {
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
	cfg     config.CacheConfig
}

func newAnswerCache(cfg config.CacheConfig) *answerCache {
	return &answerCache{
		entries: make(map[string]cacheEntry),
		cfg:     cfg,
	}
}

func (c *answerCache) enabled() bool {
	return c.cfg.Enabled
}

func (c *answerCache) get(fp string) (*Answer, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fp]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, fp)
		return nil, false
	}

	answer := entry.answer
	answer.FromCache = true
	return &answer, true
}

func (c *answerCache) put(fp string, answer *Answer) {
	if !c.cfg.Enabled || answer == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.MaxSize > 0 && len(c.entries) >= c.cfg.MaxSize {
		c.evictExpiredLocked()
		if len(c.entries) >= c.cfg.MaxSize {
			return
		}
	}
	c.entries[fp] = cacheEntry{answer: *answer, expires: time.Now().Add(c.cfg.TTL)}
}

func (c *answerCache) evictExpiredLocked() {
	now := time.Now()
	for fp, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, fp)
		}
	}
}
