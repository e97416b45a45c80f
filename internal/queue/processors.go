package queue

import (
	"context"

	"github.com/mikestefanello/backlite"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/harvest"
	"github.com/sidereusnuntius/fedicache/internal/metrics"
)

func (q *Queue) register() {
	q.client.Register(backlite.NewQueue[CollectJob](q.collect()))
	q.client.Register(backlite.NewQueue[ExpandJob](q.expand()))
}

func (q *Queue) collect() func(context.Context, CollectJob) error {
	return func(ctx context.Context, job CollectJob) (err error) {
		defer func() { q.finish(CollectQueue, job.Account, err) }()

		account, err := domain.ParseAccount(job.Account)
		if err != nil {
			return err
		}
		l, err := q.collector.Collect(ctx, account, harvest.CollectOptions{
			AgeLimit:     job.AgeLimit,
			ForceRefresh: true,
			DiscardCache: job.DiscardCache,
		})
		if err != nil {
			return err
		}
		q.log.Info().Stringer("account", account).Int("size", l.Size()).Msg("collected timeline")
		return nil
	}
}

func (q *Queue) expand() func(context.Context, ExpandJob) error {
	return func(ctx context.Context, job ExpandJob) (err error) {
		defer func() { q.finish(ExpandQueue, job.Account, err) }()

		account, err := domain.ParseAccount(job.Account)
		if err != nil {
			return err
		}
		n, err := q.expander.Expand(ctx, account, true)
		if err != nil {
			return err
		}
		q.log.Info().Stringer("account", account).Int("expanded", len(n.Follows)).Msg("expanded neighborhood")
		return nil
	}
}

func (q *Queue) finish(queue, account string, err error) {
	if err != nil {
		metrics.JobsProcessed.WithLabelValues(queue, metrics.Failed).Inc()
		q.log.Error().Err(err).Str("queue", queue).Str("account", account).Msg("job failed")
		return
	}
	metrics.JobsProcessed.WithLabelValues(queue, metrics.Ok).Inc()
}
