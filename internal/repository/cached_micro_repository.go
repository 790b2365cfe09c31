package repository

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/MSSkowron/MicroURL/internal/model"
	"github.com/MSSkowron/MicroURL/pkg/logger"
)

// CachedMicroRepository serves Lookup from an in-memory cache in front of another MicroRepository.
// Cached items never outlive the entry's expiry. The hit count of a cached entry is the one
// observed when it was cached; every other method goes straight to the wrapped repository.
type CachedMicroRepository struct {
	MicroRepository

	cache *gocache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewCachedMicroRepository wraps repo with a lookup cache whose items live at most ttl.
func NewCachedMicroRepository(repo MicroRepository, ttl time.Duration, opts ...Opt) *CachedMicroRepository {
	o := applyOpts(opts)
	return &CachedMicroRepository{
		MicroRepository: repo,
		cache:           gocache.New(ttl, 2*ttl),
		ttl:             ttl,
		now:             o.now,
	}
}

func (c *CachedMicroRepository) Lookup(ctx context.Context, code string) (*model.MicroEntry, error) {
	now := c.now()

	if value, found := c.cache.Get(code); found {
		if entry, ok := value.(model.MicroEntry); ok && !entry.Expired(now) {
			logger.Debug("Lookup cache hit", "code", code)
			return &entry, nil
		}
		c.cache.Delete(code)
	}

	entry, err := c.MicroRepository.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	if d := min(c.ttl, entry.ExpiresAt.Sub(now)); d > 0 {
		c.cache.Set(code, *entry, d)
	}

	return entry, nil
}

// DeleteExpired removes expired micros from the wrapped repository and evicts them from the cache.
func (c *CachedMicroRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := c.MicroRepository.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	for code, item := range c.cache.Items() {
		if entry, ok := item.Object.(model.MicroEntry); ok && entry.ExpiresAt.Unix() < now.Unix() {
			c.cache.Delete(code)
		}
	}

	return deleted, nil
}

var _ MicroRepository = (*CachedMicroRepository)(nil)
