package types

import "time"

// AgentResponse is the outcome of one dispatched peer request.
// Immutable after creation.
type AgentResponse struct {
	// PeerID identifies the responding peer.
	PeerID string `json:"peer_id"`

	// Index is the peer's position in the original selection order.
	// Aggregation tie-breaks operate on this, never on completion order.
	Index int `json:"index"`

	// Value is the response payload; nil on failure.
	Value Value `json:"-"`

	// LatencyMs is the observed request latency.
	LatencyMs int64 `json:"latency_ms"`

	// Success reports whether the request completed without error.
	Success bool `json:"success"`

	// Error holds the failure description when Success is false.
	Error string `json:"error,omitempty"`

	// Score is an externally supplied quality score, when the caller
	// attached one. Consumed only by the best-score strategy.
	Score *float64 `json:"score,omitempty"`
}

// ConsensusReport describes how well the responses agreed.
type ConsensusReport struct {
	// Achieved reports whether the chosen strategy's agreement bar
	// was met.
	Achieved bool `json:"achieved"`

	// Confidence is in [0,1]: the consensus cluster's share of
	// responses, or the success ratio for strategies without
	// clustering.
	Confidence float64 `json:"confidence"`

	// Agreement is the size of the consensus cluster (0 when the
	// strategy does not cluster).
	Agreement int `json:"agreement"`
}

// RoundMetrics carries the per-round accounting reported alongside
// every aggregation.
type RoundMetrics struct {
	// TotalAgents is the number of peers dispatched to, including
	// peers abandoned at the global timeout.
	TotalAgents int `json:"total_agents"`

	// SuccessfulAgents counts responses with Success = true.
	SuccessfulAgents int `json:"successful_agents"`

	// FailedAgents counts responses with Success = false. Abandoned
	// peers appear in neither count.
	FailedAgents int `json:"failed_agents"`

	// AverageLatency is the mean latency over successes only.
	AverageLatency time.Duration `json:"average_latency"`

	// TotalTime is the wall-clock span of the dispatch phase.
	TotalTime time.Duration `json:"total_time"`
}

// AggregatedResult is the final answer of one orchestration round.
// Created once per round, never mutated afterward.
type AggregatedResult struct {
	// Value is the synthesized or selected answer; may be nil when no
	// peer succeeded and the strategy tolerates that.
	Value Value `json:"-"`

	// Text is Value's textual view, or empty when Value is nil.
	Text string `json:"text"`

	Consensus ConsensusReport `json:"consensus"`
	Metrics   RoundMetrics    `json:"metrics"`
}
