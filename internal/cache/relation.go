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

// relationEntry is what is persisted for a relation. A nil Set records that the list could not be
// retrieved at RetrievedAt.
type relationEntry struct {
	Set         *domain.RelationSet `json:"set"`
	RetrievedAt time.Time           `json:"retrieved_at"`
}

type RelationCache struct {
	store    storage.EntityStore
	source   remote.Source
	profiles *ProfileCache
	log      zerolog.Logger
	now      func() time.Time
}

func NewRelationCache(store storage.EntityStore, source remote.Source, profiles *ProfileCache, logger zerolog.Logger) *RelationCache {
	return &RelationCache{
		store:    store,
		source:   source,
		profiles: profiles,
		log:      logger.With().Str("cache", "relation").Logger(),
		now:      time.Now,
	}
}

func (c *RelationCache) Following(ctx context.Context, account domain.AccountID, forceRefresh bool) (*domain.RelationSet, time.Time, error) {
	return c.Get(ctx, account, domain.Following, forceRefresh)
}

func (c *RelationCache) Followers(ctx context.Context, account domain.AccountID, forceRefresh bool) (*domain.RelationSet, time.Time, error) {
	return c.Get(ctx, account, domain.Followers, forceRefresh)
}

// Get returns the cached relation list of account, fetching it when it is not cached or when
// forceRefresh is set. A list that cannot be fetched is returned, and cached, as nil; the error is
// only set when the cache itself fails.
func (c *RelationCache) Get(ctx context.Context, account domain.AccountID, kind domain.RelationKind, forceRefresh bool) (*domain.RelationSet, time.Time, error) {
	key := storage.RelationKey(account, kind)
	if forceRefresh {
		metrics.CacheLookup(key.Kind.String(), metrics.Refresh)
	} else {
		var e relationEntry
		err := storage.LoadJSON(ctx, c.store, key, &e)
		switch {
		case err == nil:
			metrics.CacheLookup(key.Kind.String(), metrics.Hit)
			if e.Set == nil {
				c.log.Debug().Stringer("account", account).Stringer("relation", kind).Msg("cached list is absent")
			} else {
				c.log.Debug().Stringer("account", account).Stringer("relation", kind).Int("accounts", e.Set.Len()).Msg("loaded from cache")
			}
			return e.Set, e.RetrievedAt, nil
		case errors.Is(err, storage.ErrCorrupt):
			metrics.CacheLookup(key.Kind.String(), metrics.Corrupt)
			c.log.Warn().Err(err).Stringer("account", account).Msg("discarding corrupt cache entry")
		case errors.Is(err, storage.ErrNotExist):
			metrics.CacheLookup(key.Kind.String(), metrics.Miss)
		default:
			return nil, time.Time{}, err
		}
	}

	set := c.fetch(ctx, account, kind)
	if set == nil && ctx.Err() != nil {
		return nil, time.Time{}, ctx.Err()
	}

	retrieved := c.now().UTC()
	if set != nil {
		set.RetrievedAt = retrieved
	}
	if err := storage.SaveJSON(ctx, c.store, key, relationEntry{set, retrieved}); err != nil {
		return nil, time.Time{}, err
	}
	c.log.Debug().Stringer("account", account).Stringer("relation", kind).Int("accounts", set.Len()).Msg("saved to cache")
	return set, retrieved, nil
}

// fetch lists every account of the relation. The profiles embedded in the listing are stored in the
// profile cache on the way. It returns nil if anything fails.
func (c *RelationCache) fetch(ctx context.Context, account domain.AccountID, kind domain.RelationKind) *domain.RelationSet {
	logger := c.log.With().Stringer("account", account).Stringer("relation", kind).Logger()

	profile, _, err := c.profiles.Get(ctx, account, false)
	if err != nil {
		logger.Warn().Err(err).Msg("error fetching relation")
		return nil
	}
	expected := profile.FollowingCount
	if kind == domain.Followers {
		expected = profile.FollowersCount
	}
	logger.Info().Int("expected", expected).Msg("fetching all accounts")

	var page *remote.AccountPage
	if kind == domain.Followers {
		page, err = c.source.ListFollowers(ctx, account)
	} else {
		page, err = c.source.ListFollowing(ctx, account)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("error fetching relation")
		return nil
	}

	listed, err := c.source.FetchAll(ctx, page)
	if err != nil {
		logger.Warn().Err(err).Msg("error fetching relation")
		return nil
	}
	logger.Info().Int("fetched", len(listed)).Msg("fetched all accounts")

	retrieved := c.now().UTC()
	set := &domain.RelationSet{
		Owner:    account,
		Kind:     kind,
		Accounts: make([]domain.AccountID, 0, len(listed)),
	}
	for _, l := range listed {
		id, err := domain.ParseAccountRelative(l.Acct, account.Host)
		if err != nil {
			logger.Debug().Err(err).Msg("skipping listed account")
			continue
		}
		if l.Profile != nil {
			p := *l.Profile
			p.Acct = id.String()
			if err = c.profiles.Put(ctx, id, p, retrieved); err != nil {
				logger.Warn().Err(err).Stringer("listed", id).Msg("could not cache listed profile")
			}
		}
		set.Accounts = append(set.Accounts, id)
	}
	return set
}
