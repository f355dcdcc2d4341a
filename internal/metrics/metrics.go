// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the ingestion engine.
type Metrics struct {
	BatchesAccepted prometheus.Counter
	BatchesRejected *prometheus.CounterVec

	CommitsInserted prometheus.Counter
	CommitsSkipped  prometheus.Counter

	PullCycles   prometheus.Counter
	PullFailures prometheus.Counter

	RateLimited prometheus.Counter
}

// New registers and returns the engine's metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BatchesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "commitsync_batches_accepted_total",
			Help: "Batches accepted by the ingestion service.",
		}),
		BatchesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "commitsync_batches_rejected_total",
			Help: "Batches rejected before insertion, by reason.",
		}, []string{"reason"}),
		CommitsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "commitsync_commits_inserted_total",
			Help: "Commit records newly inserted.",
		}),
		CommitsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "commitsync_commits_skipped_total",
			Help: "Commit submissions skipped because the SHA was already stored.",
		}),
		PullCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "commitsync_pull_cycles_total",
			Help: "Completed pull sync operations.",
		}),
		PullFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "commitsync_pull_failures_total",
			Help: "Pull sync operations that ended in an error state.",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "commitsync_rate_limited_total",
			Help: "Requests rejected by the per-credential rate limiter.",
		}),
	}
}

// NewUnregistered returns metrics on a private registry, for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
