// Package metrics exposes the harvester's prometheus collectors. They are registered on the default
// registry, which the web server publishes under /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fedicache"

// Cache lookup results.
const (
	Hit     = "hit"
	Miss    = "miss"
	Refresh = "refresh"
	Corrupt = "corrupt"
)

// Remote request outcomes.
const (
	Ok     = "ok"
	Failed = "failed"
)

var (
	RemoteRequests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "remote_request_duration_seconds",
		Help:      "Duration in seconds of requests made to remote servers.",
	}, []string{"host", "outcome"})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Number of cache lookups by entity kind and result.",
	}, []string{"kind", "result"})

	StatusesCollected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "statuses_collected_total",
		Help:      "Number of new statuses added to ledgers.",
	})

	NeighborsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "neighbors_skipped_total",
		Help:      "Number of neighbors left out of an expansion.",
	}, []string{"reason"})

	JobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_processed_total",
		Help:      "Number of background refresh jobs run.",
	}, []string{"queue", "outcome"})
)

func init() {
	prometheus.MustRegister(RemoteRequests, CacheLookups, StatusesCollected, NeighborsSkipped, JobsProcessed)
}

type RequestObserver struct {
	host  string
	start time.Time
}

func StartRemoteRequest(host string) *RequestObserver {
	return &RequestObserver{host, time.Now()}
}

func (o *RequestObserver) Finish(outcome string) {
	RemoteRequests.WithLabelValues(o.host, outcome).Observe(time.Since(o.start).Seconds())
}

func CacheLookup(kind, result string) {
	CacheLookups.WithLabelValues(kind, result).Inc()
}
