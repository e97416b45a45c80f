package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sidereusnuntius/fedicache/internal/cache"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/metrics"
	"golang.org/x/sync/errgroup"
)

var ErrSeedUnavailable = errors.New("following list of the seed account is unavailable")

const DefaultWorkers = 4

// Neighborhood maps each account followed by Seed.Owner to the accounts it follows. Follows only
// holds the accounts whose list could be retrieved. OldestRetrievedAt is the retrieval time of the
// stalest list used, the seed's included.
type Neighborhood struct {
	Seed              domain.RelationSet                      `json:"seed"`
	Follows           map[domain.AccountID]domain.RelationSet `json:"follows"`
	OldestRetrievedAt time.Time                               `json:"oldest_retrieved_at"`
}

type NeighborhoodExpander struct {
	relations *cache.RelationCache
	skipHosts map[string]struct{}
	workers   int
	log       zerolog.Logger
}

// NewNeighborhoodExpander returns an expander that never visits accounts on skipHosts and fetches
// at most workers lists at a time.
func NewNeighborhoodExpander(relations *cache.RelationCache, skipHosts []string, workers int, logger zerolog.Logger) *NeighborhoodExpander {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	skip := make(map[string]struct{}, len(skipHosts))
	for _, h := range skipHosts {
		skip[domain.NewAccount("", h).Host] = struct{}{}
	}
	return &NeighborhoodExpander{
		relations: relations,
		skipHosts: skip,
		workers:   workers,
		log:       logger.With().Str("component", "expander").Logger(),
	}
}

func (e *NeighborhoodExpander) Skipped(host string) bool {
	_, ok := e.skipHosts[host]
	return ok
}

// Expand retrieves the following list of account and then the following list of every account in
// it. Accounts whose list cannot be retrieved are left out of the result.
func (e *NeighborhoodExpander) Expand(ctx context.Context, account domain.AccountID, forceRefresh bool) (*Neighborhood, error) {
	seed, retrieved, err := e.relations.Following(ctx, account, forceRefresh)
	if err != nil {
		return nil, err
	}
	if seed == nil {
		e.log.Warn().Stringer("account", account).Msg("couldn't retrieve follows")
		return nil, fmt.Errorf("%w: %s", ErrSeedUnavailable, account)
	}

	n := &Neighborhood{
		Seed:              *seed,
		Follows:           make(map[domain.AccountID]domain.RelationSet, seed.Len()),
		OldestRetrievedAt: retrieved,
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, f := range seed.Accounts {
		logger := e.log.With().Stringer("account", f).Int("index", i).Int("total", seed.Len()).Logger()
		if e.Skipped(f.Host) {
			metrics.NeighborsSkipped.WithLabelValues("host").Inc()
			logger.Debug().Msg("skipping excluded host")
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			set, retrieved, err := e.relations.Following(ctx, f, forceRefresh)
			if err != nil || set == nil {
				metrics.NeighborsSkipped.WithLabelValues("unavailable").Inc()
				logger.Info().Err(err).Msg("couldn't retrieve any follows information")
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			n.Follows[f] = *set
			if retrieved.Before(n.OldestRetrievedAt) {
				n.OldestRetrievedAt = retrieved
			}
			return nil
		})
	}
	g.Wait()

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	e.log.Info().Stringer("account", account).Int("follows", seed.Len()).Int("expanded", len(n.Follows)).Msg("expanded neighborhood")
	return n, nil
}
