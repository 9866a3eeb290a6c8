// Package subscription owns a user's premium-subscription record: the
// remote document store is the source of truth, fronted by a local cache
// with a one-hour freshness window so a flaky or absent network degrades to
// stale data instead of failing the session load.
package subscription

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/haeso-app/haeso-api/pkg/domain"
	"github.com/haeso-app/haeso-api/pkg/repository/kvstore"
)

const CacheTTL = time.Hour

const cacheKeyPrefix = "subscription_"

// RemoteStore is the remote subscription document store. Get returns
// (nil, nil) when no record exists for the user.
type RemoteStore interface {
	Get(ctx context.Context, userID string) (*domain.Subscription, error)
	Put(ctx context.Context, userID string, sub *domain.Subscription) error
}

type cacheEntry struct {
	Data      *domain.Subscription `json:"data"`
	Timestamp time.Time            `json:"timestamp"`
}

// Cache fetches subscription records through the local cache. Fetch never
// returns an error: remote failures are logged and swallowed in favor of
// last-known data.
type Cache struct {
	remote RemoteStore
	local  kvstore.Store
	log    zerolog.Logger

	// Online is the connectivity probe. Defaults to always-online.
	Online func() bool
	Now    func() time.Time
}

func NewCache(remote RemoteStore, local kvstore.Store, log zerolog.Logger) *Cache {
	return &Cache{
		remote: remote,
		local:  local,
		log:    log.With().Str("component", "subscription-cache").Logger(),
		Online: func() bool { return true },
		Now:    time.Now,
	}
}

// Fetch returns the user's subscription, preferring a cache entry fresher
// than CacheTTL, then the remote store, then stale cached data, then nil.
func (c *Cache) Fetch(ctx context.Context, userID string) *domain.Subscription {
	cached, cachedAt, hasCached := c.readCache(ctx, userID)
	if hasCached && c.Now().Sub(cachedAt) < CacheTTL {
		return cached
	}

	if !c.Online() {
		c.log.Debug().Str("user", userID).Msg("offline, using cached subscription")
		if hasCached {
			return cached
		}
		return nil
	}

	fresh, err := c.remote.Get(ctx, userID)
	if err != nil {
		c.log.Warn().Err(err).Str("user", userID).Msg("remote subscription fetch failed, falling back to cache")
		if hasCached {
			return cached
		}
		return nil
	}

	if fresh != nil {
		c.writeCache(ctx, userID, fresh)
	}
	return fresh
}

// Invalidate drops the cache entry so the next Fetch hits the remote store.
func (c *Cache) Invalidate(ctx context.Context, userID string) {
	if err := c.local.Delete(ctx, cacheKeyPrefix+userID); err != nil {
		c.log.Warn().Err(err).Str("user", userID).Msg("invalidating subscription cache")
	}
}

func (c *Cache) readCache(ctx context.Context, userID string) (*domain.Subscription, time.Time, bool) {
	raw, ok, err := c.local.Get(ctx, cacheKeyPrefix+userID)
	if err != nil {
		c.log.Warn().Err(err).Str("user", userID).Msg("reading subscription cache")
		return nil, time.Time{}, false
	}
	if !ok {
		return nil, time.Time{}, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.log.Warn().Err(err).Str("user", userID).Msg("corrupted subscription cache entry, treating as miss")
		return nil, time.Time{}, false
	}
	return entry.Data, entry.Timestamp, true
}

func (c *Cache) writeCache(ctx context.Context, userID string, sub *domain.Subscription) {
	raw, err := json.Marshal(cacheEntry{Data: sub, Timestamp: c.Now()})
	if err != nil {
		return
	}
	if err := c.local.Set(ctx, cacheKeyPrefix+userID, raw); err != nil {
		c.log.Warn().Err(err).Str("user", userID).Msg("writing subscription cache")
	}
}
