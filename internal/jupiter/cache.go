package jupiter

import (
	"context"
	"errors"
	"time"

	"github.com/R3E-Network/vault_gateway/internal/logging"
	"github.com/R3E-Network/vault_gateway/internal/metrics"
	"github.com/R3E-Network/vault_gateway/internal/tokenstore"
)

// DefaultCacheTTL is how long a fetched token list is served.
const DefaultCacheTTL = 6 * time.Hour

// TokenFetcher loads the full verified token list from upstream.
type TokenFetcher interface {
	VerifiedTokens(ctx context.Context) ([]Token, error)
}

// Cache serves the verified token list, refreshing it synchronously once the
// snapshot is older than the TTL. Concurrent refreshes are not coalesced;
// the last successful write wins. Failed fetches are not cached.
type Cache struct {
	fetcher TokenFetcher
	store   tokenstore.Store
	ttl     time.Duration
	now     func() time.Time
	logger  *logging.Logger
}

// NewCache creates a token cache. A nil store falls back to memory.
func NewCache(fetcher TokenFetcher, store tokenstore.Store, ttl time.Duration, logger *logging.Logger) *Cache {
	if store == nil {
		store = tokenstore.NewMemoryStore()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{fetcher: fetcher, store: store, ttl: ttl, now: time.Now, logger: logger}
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the current snapshot and whether it was served from cache.
func (c *Cache) Get(ctx context.Context) (*tokenstore.Snapshot, bool, error) {
	snap, err := c.store.Load(ctx)
	switch {
	case err == nil && snap.Fresh(c.now(), c.ttl):
		metrics.RecordTokenCache("hit")
		return snap, true, nil
	case err != nil && !errors.Is(err, tokenstore.ErrMiss):
		c.logger.WithContext(ctx).WithError(err).Warn("token store load failed, refetching")
	}

	metrics.RecordTokenCache("miss")
	fresh, err := c.Refresh(ctx)
	if err != nil {
		return nil, false, err
	}
	return fresh, false, nil
}

// Refresh fetches the list from upstream and replaces the snapshot.
func (c *Cache) Refresh(ctx context.Context) (*tokenstore.Snapshot, error) {
	tokens, err := c.fetcher.VerifiedTokens(ctx)
	if err != nil {
		metrics.RecordTokenCache("refresh_error")
		return nil, err
	}

	snap := &tokenstore.Snapshot{Tokens: tokens, FetchedAt: c.now()}
	if err := c.store.Save(ctx, snap); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("token store save failed")
	}
	metrics.RecordTokenCache("refresh")
	c.logger.WithContext(ctx).WithField("count", len(tokens)).Info("token list refreshed")
	return snap, nil
}
