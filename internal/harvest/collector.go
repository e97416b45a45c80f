// Package harvest walks remote accounts: it collects their timelines into ledgers and expands their
// follow graph by one hop.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sidereusnuntius/fedicache/internal/cache"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/ledger"
	"github.com/sidereusnuntius/fedicache/internal/metrics"
	"github.com/sidereusnuntius/fedicache/internal/remote"
	"github.com/sidereusnuntius/fedicache/internal/storage"
)

const DefaultMaxStatusFetchPerQuery = 40

type CollectOptions struct {
	// AgeLimit bounds how old the fetched statuses may be. Zero means no limit.
	AgeLimit time.Duration
	// ForceRefresh fetches new statuses even when a ledger is cached.
	ForceRefresh bool
	// DiscardCache ignores the cached ledger and starts from an empty one.
	DiscardCache bool
}

type TimelineCollector struct {
	store    storage.EntityStore
	source   remote.Source
	profiles *cache.ProfileCache
	limit    int
	log      zerolog.Logger
	now      func() time.Time
}

// NewTimelineCollector returns a collector that asks for at most limit statuses per listing. A
// non-positive limit is replaced by DefaultMaxStatusFetchPerQuery.
func NewTimelineCollector(store storage.EntityStore, source remote.Source, profiles *cache.ProfileCache, limit int, logger zerolog.Logger) *TimelineCollector {
	if limit <= 0 {
		limit = DefaultMaxStatusFetchPerQuery
	}
	return &TimelineCollector{
		store:    store,
		source:   source,
		profiles: profiles,
		limit:    limit,
		log:      logger.With().Str("component", "collector").Logger(),
		now:      time.Now,
	}
}

// Cached returns the stored ledger of account without contacting the remote. It fails with
// storage.ErrNotExist when nothing was collected yet.
func (c *TimelineCollector) Cached(ctx context.Context, account domain.AccountID) (*ledger.Ledger, error) {
	var l ledger.Ledger
	if err := storage.LoadJSON(ctx, c.store, storage.StatusesKey(account), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Collect returns the ledger of account, extended with the statuses published since the newest one
// it holds. A cached ledger is returned as is unless opts.ForceRefresh is set. When the listing
// fails the error is returned together with the ledger that was loaded, so callers can fall back
// to it.
func (c *TimelineCollector) Collect(ctx context.Context, account domain.AccountID, opts CollectOptions) (*ledger.Ledger, error) {
	logger := c.log.With().Stringer("account", account).Logger()
	key := storage.StatusesKey(account)

	old, cached, err := c.load(ctx, account, opts.DiscardCache)
	if err != nil {
		return nil, err
	}
	if cached && !opts.ForceRefresh {
		logger.Debug().Int("size", old.Size()).Msg("returning cached ledger")
		return old, nil
	}

	var minID int64
	if !old.Empty() {
		minID = old.MaxID + 1
	}
	if opts.AgeLimit > 0 {
		minID = max(minID, domain.IDFromTime(c.now().Add(-opts.AgeLimit)))
	}

	statuses, err := c.fetch(ctx, account, minID)
	if err != nil {
		return old, err
	}
	if len(statuses) == 0 {
		logger.Info().Msg("no new statuses")
		return old, nil
	}

	fresh := ledger.FromStatuses(account, statuses)
	merged, err := ledger.Merge(old, fresh)
	if err != nil {
		return old, err
	}
	// Servers may ignore min_id and return statuses the ledger already holds.
	if cached && merged.Size() == old.Size() {
		logger.Info().Int("fetched", len(statuses)).Msg("no new statuses")
		return old, nil
	}
	logger.Info().
		Int("new_posts", fresh.NrPosts()).
		Int("new_reblogs", fresh.NrReblogs()).
		Int("posts", merged.NrPosts()).
		Int("reblogs", merged.NrReblogs()).
		Msg("collected statuses")

	if err = storage.SaveJSON(ctx, c.store, key, merged); err != nil {
		return merged, fmt.Errorf("saving ledger of %s: %w", account, err)
	}
	metrics.StatusesCollected.Add(float64(merged.Size() - old.Size()))
	return merged, nil
}

// load reads the cached ledger. The second result reports whether one was found.
func (c *TimelineCollector) load(ctx context.Context, account domain.AccountID, discard bool) (*ledger.Ledger, bool, error) {
	key := storage.StatusesKey(account)
	if discard {
		metrics.CacheLookup(key.Kind.String(), metrics.Refresh)
		return ledger.New(account), false, nil
	}

	l, err := c.Cached(ctx, account)
	switch {
	case err == nil:
		metrics.CacheLookup(key.Kind.String(), metrics.Hit)
		return l, true, nil
	case errors.Is(err, storage.ErrCorrupt):
		metrics.CacheLookup(key.Kind.String(), metrics.Corrupt)
		c.log.Warn().Err(err).Stringer("account", account).Msg("discarding corrupt cache entry")
		return ledger.New(account), false, nil
	case errors.Is(err, storage.ErrNotExist):
		metrics.CacheLookup(key.Kind.String(), metrics.Miss)
		return ledger.New(account), false, nil
	default:
		return nil, false, err
	}
}

// fetch lists the statuses of account starting at minID. It keeps paging towards newer statuses
// until about c.limit have been received; once there are no newer ones it goes back to the first
// page and pages towards older statuses instead. The limit is not reduced when the direction
// changes, so more than c.limit statuses may be returned.
func (c *TimelineCollector) fetch(ctx context.Context, account domain.AccountID, minID int64) ([]domain.RemoteStatus, error) {
	logger := c.log.With().Stringer("account", account).Logger()

	profile, _, err := c.profiles.Get(ctx, account, true)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("statuses_count", profile.StatusesCount).Msg("total status count")
	if profile.StatusesCount == 0 {
		logger.Debug().Msg("account has no statuses")
		return nil, nil
	}

	logger.Debug().Int("limit", c.limit).Int64("min_id", minID).Msg("listing statuses")
	first, err := c.source.ListStatuses(ctx, account, minID, c.limit)
	if err != nil {
		return nil, err
	}
	if first.Empty() {
		return nil, nil
	}

	statuses := c.stamp(nil, first)
	received, last := len(first.Statuses), len(first.Statuses)
	page := first
	older := false
	for last != 0 && received < c.limit {
		var next *remote.StatusPage
		if older {
			next, err = c.source.PreviousPage(ctx, page)
		} else {
			next, err = c.source.NextPage(ctx, page)
		}
		if err != nil {
			return nil, err
		}

		if next.Empty() {
			if older {
				break
			}
			older = true
			page = first
			continue
		}

		statuses = c.stamp(statuses, next)
		last = len(next.Statuses)
		received += last
		page = next
	}
	logger.Debug().Int("fetched", len(statuses)).Msg("listing done")
	return statuses, nil
}

// stamp appends the statuses of page to statuses, setting their fetch time.
func (c *TimelineCollector) stamp(statuses []domain.RemoteStatus, page *remote.StatusPage) []domain.RemoteStatus {
	fetched := c.now().UTC()
	for _, s := range page.Statuses {
		s.Fetched = fetched
		if s.Reblog != nil {
			inner := *s.Reblog
			inner.Fetched = fetched
			s.Reblog = &inner
		}
		statuses = append(statuses, s)
	}
	return statuses
}
