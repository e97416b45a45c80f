package queue

import (
	"time"

	"github.com/mikestefanello/backlite"
)

const (
	CollectQueue = "Collect"
	ExpandQueue  = "Expand"
)

// CollectJob refreshes the timeline ledger of Account.
type CollectJob struct {
	Account      string
	AgeLimit     time.Duration
	DiscardCache bool
}

func (j CollectJob) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        CollectQueue,
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   12 * time.Hour,
			OnlyFailed: false,
			Data: &backlite.RetainData{
				OnlyFailed: true,
			},
		},
	}
}

// ExpandJob refreshes the neighborhood of Account.
type ExpandJob struct {
	Account string
}

func (j ExpandJob) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        ExpandQueue,
		MaxAttempts: 2,
		Backoff:     5 * time.Minute,
		Timeout:     time.Hour,
		Retention: &backlite.Retention{
			Duration:   12 * time.Hour,
			OnlyFailed: true,
		},
	}
}
