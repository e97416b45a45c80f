// Package queue runs timeline and neighborhood refreshes in the background, persisting pending jobs
// in SQLite so they survive restarts.
package queue

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/harvest"
	"github.com/sidereusnuntius/fedicache/internal/ledger"
)

type Collector interface {
	Collect(ctx context.Context, account domain.AccountID, opts harvest.CollectOptions) (*ledger.Ledger, error)
}

type Expander interface {
	Expand(ctx context.Context, account domain.AccountID, forceRefresh bool) (*harvest.Neighborhood, error)
}

type RefreshQueue interface {
	// Refresh enqueues a collection of the timeline of account followed by an expansion of its
	// neighborhood.
	Refresh(ctx context.Context, account domain.AccountID, ageLimit time.Duration) error
}

type Queue struct {
	client    *backlite.Client
	collector Collector
	expander  Expander
	log       zerolog.Logger
}

// New registers the refresh queues on client. The client still has to be started.
func New(client *backlite.Client, collector Collector, expander Expander, logger zerolog.Logger) *Queue {
	q := &Queue{
		client:    client,
		collector: collector,
		expander:  expander,
		log:       logger.With().Str("component", "queue").Logger(),
	}
	q.register()
	return q
}

func (q *Queue) Start(ctx context.Context) {
	q.client.Start(ctx)
	q.log.Info().Msg("started task queue")
}

func (q *Queue) Stop(ctx context.Context) {
	q.client.Stop(ctx)
}

func (q *Queue) Refresh(ctx context.Context, account domain.AccountID, ageLimit time.Duration) error {
	q.log.Debug().Stringer("account", account).Msg("enqueuing refresh")
	_, err := q.client.
		Add(CollectJob{Account: account.String(), AgeLimit: ageLimit}, ExpandJob{Account: account.String()}).
		Ctx(ctx).
		Save()
	return err
}
