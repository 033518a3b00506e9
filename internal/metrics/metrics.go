// Package metrics provides internal Prometheus collectors for the
// orchestration engine. This package is internal and should not be
// imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the engine's Prometheus instruments.
type Collector struct {
	roundsTotal         *prometheus.CounterVec
	roundDuration       *prometheus.HistogramVec
	peerRequestsTotal   *prometheus.CounterVec
	peerLatency         *prometheus.HistogramVec
	consensusConfidence prometheus.Histogram
}

// NewCollector registers the engine's instruments on the given
// registerer. Pass prometheus.DefaultRegisterer for the usual global
// registry, or a fresh registry in tests.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		roundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orchestration_rounds_total",
				Help:      "Orchestration rounds by aggregation strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		),
		roundDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "orchestration_round_duration_seconds",
				Help:      "Wall-clock duration of the dispatch phase.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		peerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "peer_requests_total",
				Help:      "Dispatched peer requests by outcome.",
			},
			[]string{"peer_id", "outcome"},
		),
		peerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "peer_request_latency_seconds",
				Help:      "Latency of successful peer requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"peer_id"},
		),
		consensusConfidence: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "consensus_confidence",
				Help:      "Confidence of completed orchestration rounds.",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
	}
}

// RecordRound records one completed or failed orchestration round.
func (c *Collector) RecordRound(strategy, outcome string, durationSeconds float64) {
	c.roundsTotal.WithLabelValues(strategy, outcome).Inc()
	c.roundDuration.WithLabelValues(strategy).Observe(durationSeconds)
}

// RecordPeerRequest records one peer request outcome.
func (c *Collector) RecordPeerRequest(peerID string, success bool, latencySeconds float64) {
	outcome := "failure"
	if success {
		outcome = "success"
		c.peerLatency.WithLabelValues(peerID).Observe(latencySeconds)
	}
	c.peerRequestsTotal.WithLabelValues(peerID, outcome).Inc()
}

// RecordConfidence records a round's consensus confidence.
func (c *Collector) RecordConfidence(confidence float64) {
	c.consensusConfidence.Observe(confidence)
}
