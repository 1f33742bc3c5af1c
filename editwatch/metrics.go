package editwatch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hazyhaar/storyedit/kit"
)

var (
	// capturesTotal counts snapshot captures by origin and outcome
	// (appended or refreshed).
	capturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editwatch_captures_total",
		Help: "Snapshot captures by origin and outcome",
	}, []string{"origin", "outcome"})

	// persistFailures counts store writes that were rejected.
	persistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editwatch_persist_failures_total",
		Help: "Store writes rejected, by key",
	}, []string{"key"})

	// candidateGenerations counts Generate runs by outcome.
	candidateGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editwatch_candidate_generations_total",
		Help: "Candidate generations by outcome (written, unchanged, cleared)",
	}, []string{"outcome"})

	// candidateDiffs is the diff count of the current artifact.
	candidateDiffs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "editwatch_candidate_diffs",
		Help: "Diffs carried by the pending candidate artifact",
	})

	// signalsTotal counts edit signals received, by kind.
	signalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editwatch_signals_total",
		Help: "Edit signals received by kind",
	}, []string{"kind"})

	// endpointDuration times HTTP and MCP endpoint calls.
	endpointDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "editwatch_endpoint_duration_seconds",
		Help:    "Endpoint latency by operation, transport and status",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"op", "transport", "status"})
)

// instrument observes each call of the endpoint named op.
func instrument(op string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			status := "ok"
			if err != nil {
				status = "error"
			}
			endpointDuration.WithLabelValues(op, kit.GetTransport(ctx), status).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}
