package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/pkg/cache"
)

// Deduper suppresses redelivered platform events. Seen reports whether the
// event id was already observed, marking it as observed otherwise.
type Deduper interface {
	Seen(ctx context.Context, eventID string) bool
}

// RedisDeduper keys seen events in Redis with a TTL, so redeliveries are
// suppressed across controller restarts. SetNX is the observation: the first
// caller wins the key, later callers see it taken. Fails open: if Redis is
// unreachable the event is treated as new, because a double-handled event is
// recoverable and a dropped one is not.
type RedisDeduper struct {
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisDeduper(c *cache.Cache, ttl time.Duration, logger *zap.Logger) *RedisDeduper {
	return &RedisDeduper{cache: c, ttl: ttl, logger: logger}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) bool {
	if eventID == "" {
		return false
	}
	fresh, err := d.cache.SetNX(ctx, fmt.Sprintf(cache.KeyEventSeen, eventID), 1, d.ttl)
	if err != nil {
		d.logger.Warn("Dedup check failed, treating event as new",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return false
	}
	return !fresh
}

// MemoryDeduper is the in-process fallback used in tests and single-node
// runs without Redis. Entries are evicted after the TTL on later calls.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time), ttl: ttl}
}

func (d *MemoryDeduper) Seen(ctx context.Context, eventID string) bool {
	if eventID == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, id)
		}
	}
	if _, ok := d.seen[eventID]; ok {
		return true
	}
	d.seen[eventID] = now
	return false
}
