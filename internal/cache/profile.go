// Package cache keeps the replace-on-refresh entities of an account: its profile and its following
// and followers lists. Each entry is stored together with the time it was retrieved.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/metrics"
	"github.com/sidereusnuntius/fedicache/internal/remote"
	"github.com/sidereusnuntius/fedicache/internal/storage"
)

type profileEntry struct {
	Profile     domain.Profile `json:"profile"`
	RetrievedAt time.Time      `json:"retrieved_at"`
}

type ProfileCache struct {
	store  storage.EntityStore
	source remote.Source
	log    zerolog.Logger
	now    func() time.Time
}

func NewProfileCache(store storage.EntityStore, source remote.Source, logger zerolog.Logger) *ProfileCache {
	return &ProfileCache{
		store:  store,
		source: source,
		log:    logger.With().Str("cache", "profile").Logger(),
		now:    time.Now,
	}
}

// Get returns the cached profile of account, looking it up when it is not cached or when
// forceRefresh is set. Lookup failures are returned as a *remote.FetchError.
func (c *ProfileCache) Get(ctx context.Context, account domain.AccountID, forceRefresh bool) (domain.Profile, time.Time, error) {
	key := storage.ProfileKey(account)
	if forceRefresh {
		metrics.CacheLookup(key.Kind.String(), metrics.Refresh)
	} else {
		var e profileEntry
		err := storage.LoadJSON(ctx, c.store, key, &e)
		switch {
		case err == nil:
			metrics.CacheLookup(key.Kind.String(), metrics.Hit)
			c.log.Debug().Stringer("account", account).Msg("loaded from cache")
			return e.Profile, e.RetrievedAt, nil
		case errors.Is(err, storage.ErrCorrupt):
			metrics.CacheLookup(key.Kind.String(), metrics.Corrupt)
			c.log.Warn().Err(err).Stringer("account", account).Msg("discarding corrupt cache entry")
		case errors.Is(err, storage.ErrNotExist):
			metrics.CacheLookup(key.Kind.String(), metrics.Miss)
		default:
			return domain.Profile{}, time.Time{}, err
		}
	}

	p, err := c.source.LookupProfile(ctx, account)
	if err != nil {
		return domain.Profile{}, time.Time{}, remote.NewFetchError("lookup", account, err)
	}

	retrieved := c.now().UTC()
	if err = c.Put(ctx, account, p, retrieved); err != nil {
		return domain.Profile{}, time.Time{}, err
	}
	return p, retrieved, nil
}

// Put stores a profile obtained elsewhere, such as one embedded in a listing.
func (c *ProfileCache) Put(ctx context.Context, account domain.AccountID, p domain.Profile, retrievedAt time.Time) error {
	if err := storage.SaveJSON(ctx, c.store, storage.ProfileKey(account), profileEntry{p, retrievedAt}); err != nil {
		return err
	}
	c.log.Debug().Stringer("account", account).Msg("saved to cache")
	return nil
}
