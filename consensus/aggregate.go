package consensus

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/agentmesh/types"
)

// Strategy identifies an aggregation strategy.
type Strategy string

const (
	// StrategyFirstResponse picks the fastest success.
	StrategyFirstResponse Strategy = "first-response"
	// StrategyBestScore picks the success with the highest external
	// score, falling back to first-response when no scores exist.
	StrategyBestScore Strategy = "best-score"
	// StrategyMajorityVote clusters successes and picks the largest
	// cluster's earliest member.
	StrategyMajorityVote Strategy = "majority-vote"
	// StrategyWeightedVote is majority-vote with reputation-weighted
	// confidence.
	StrategyWeightedVote Strategy = "weighted-vote"
	// StrategyConsensusThreshold is majority-vote with an explicit
	// confidence bar and minimum cluster size.
	StrategyConsensusThreshold Strategy = "consensus-threshold"
	// StrategyEnsemble concatenates every successful response.
	StrategyEnsemble Strategy = "ensemble"
	// StrategySynthesized is consensus-threshold with the
	// representative produced by an external summarization step.
	StrategySynthesized Strategy = "synthesized-consensus"
)

// Config tunes the clustering strategies.
type Config struct {
	// SimilarityThreshold is the cluster-membership bar in [0,1].
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`

	// ConsensusThreshold is the confidence bar for the
	// consensus-threshold and synthesized strategies.
	ConsensusThreshold float64 `json:"consensus_threshold" yaml:"consensus_threshold"`

	// MinAgents is the minimum consensus-cluster size for the
	// consensus-threshold and synthesized strategies.
	MinAgents int `json:"min_agents" yaml:"min_agents"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.8,
		ConsensusThreshold:  0.66,
		MinAgents:           1,
	}
}

// Synthesizer produces one text from the consensus cluster's member
// texts. Supplied by the inference collaborator.
type Synthesizer interface {
	Synthesize(ctx context.Context, texts []string) (string, error)
}

// Round is one dispatch outcome handed to the aggregator. Responses
// hold only completed requests, ordered by selection index; Dispatched
// counts every peer asked, including abandoned ones.
type Round struct {
	Responses  []types.AgentResponse
	Dispatched int
	Elapsed    time.Duration

	// Reputations maps peer ID to reputation, consumed by
	// weighted-vote. Missing peers weigh zero.
	Reputations map[string]float64
}

// Aggregator converts dispatch results into a final answer.
type Aggregator struct {
	config Config
	scorer Scorer
	synth  Synthesizer
	logger *zap.Logger
}

// NewAggregator creates an aggregator. synth may be nil; the
// synthesized strategy then degrades to consensus-threshold behavior.
func NewAggregator(config Config, scorer Scorer, synth Synthesizer, logger *zap.Logger) *Aggregator {
	if config.SimilarityThreshold <= 0 {
		config.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if config.ConsensusThreshold <= 0 {
		config.ConsensusThreshold = DefaultConfig().ConsensusThreshold
	}
	if config.MinAgents <= 0 {
		config.MinAgents = DefaultConfig().MinAgents
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		config: config,
		scorer: scorer,
		synth:  synth,
		logger: logger.With(zap.String("component", "aggregator")),
	}
}

// Aggregate produces the round's final result. All-failed rounds yield
// a well-formed result with Achieved = false, except for strategies
// that must return a concrete response (first-response, and best-score
// via its fallback) which raise NO_SUCCESSFUL_RESPONSES.
func (a *Aggregator) Aggregate(ctx context.Context, strategy Strategy, round Round) (*types.AggregatedResult, error) {
	successes := successful(round.Responses)
	metrics := buildMetrics(round, successes)

	switch strategy {
	case StrategyFirstResponse:
		return a.firstResponse(successes, metrics)
	case StrategyBestScore:
		return a.bestScore(successes, metrics)
	case StrategyMajorityVote:
		return a.clusterVote(ctx, strategy, round, successes, metrics)
	case StrategyWeightedVote:
		return a.clusterVote(ctx, strategy, round, successes, metrics)
	case StrategyConsensusThreshold:
		return a.clusterVote(ctx, strategy, round, successes, metrics)
	case StrategySynthesized:
		return a.clusterVote(ctx, strategy, round, successes, metrics)
	case StrategyEnsemble:
		return a.ensemble(successes, metrics), nil
	default:
		a.logger.Warn("unknown aggregation strategy, using majority-vote",
			zap.String("strategy", string(strategy)),
		)
		return a.clusterVote(ctx, StrategyMajorityVote, round, successes, metrics)
	}
}

func successful(responses []types.AgentResponse) []types.AgentResponse {
	out := make([]types.AgentResponse, 0, len(responses))
	for _, r := range responses {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}

func buildMetrics(round Round, successes []types.AgentResponse) types.RoundMetrics {
	var latencySum int64
	for _, r := range successes {
		latencySum += r.LatencyMs
	}
	avg := time.Duration(0)
	if len(successes) > 0 {
		avg = time.Duration(latencySum/int64(len(successes))) * time.Millisecond
	}
	return types.RoundMetrics{
		TotalAgents:      round.Dispatched,
		SuccessfulAgents: len(successes),
		FailedAgents:     len(round.Responses) - len(successes),
		AverageLatency:   avg,
		TotalTime:        round.Elapsed,
	}
}

// firstResponse picks the success with the smallest latency, ties to
// the lowest selection index.
func (a *Aggregator) firstResponse(successes []types.AgentResponse, metrics types.RoundMetrics) (*types.AggregatedResult, error) {
	if len(successes) == 0 {
		return nil, types.NewError(types.ErrNoSuccessfulResponses, "first-response requires at least one success")
	}

	best := successes[0]
	for _, r := range successes[1:] {
		if r.LatencyMs < best.LatencyMs {
			best = r
		}
	}
	return result(best.Value, types.ConsensusReport{
		Achieved:   true,
		Confidence: 1.0,
		Agreement:  1,
	}, metrics), nil
}

// bestScore picks the success with the highest external score; without
// any scores it behaves exactly like first-response.
func (a *Aggregator) bestScore(successes []types.AgentResponse, metrics types.RoundMetrics) (*types.AggregatedResult, error) {
	var best *types.AgentResponse
	for i := range successes {
		r := &successes[i]
		if r.Score == nil {
			continue
		}
		if best == nil || *r.Score > *best.Score {
			best = r
		}
	}
	if best == nil {
		return a.firstResponse(successes, metrics)
	}
	return result(best.Value, types.ConsensusReport{
		Achieved:   true,
		Confidence: 1.0,
		Agreement:  1,
	}, metrics), nil
}

// ensemble concatenates every successful text; confidence is the
// success ratio over all dispatched peers.
func (a *Aggregator) ensemble(successes []types.AgentResponse, metrics types.RoundMetrics) *types.AggregatedResult {
	texts := make([]string, len(successes))
	for i, r := range successes {
		texts[i] = r.Value.Text()
	}

	confidence := 0.0
	if metrics.TotalAgents > 0 {
		confidence = float64(len(successes)) / float64(metrics.TotalAgents)
	}
	var value types.Value
	if len(texts) > 0 {
		value = types.TextValue(strings.Join(texts, "\n\n"))
	}
	return result(value, types.ConsensusReport{
		Achieved:   len(successes) > 0,
		Confidence: confidence,
		Agreement:  len(successes),
	}, metrics)
}

// clusterVote implements the four clustering strategies, which differ
// only in how confidence is weighted and when consensus counts as
// achieved.
func (a *Aggregator) clusterVote(ctx context.Context, strategy Strategy, round Round, successes []types.AgentResponse, metrics types.RoundMetrics) (*types.AggregatedResult, error) {
	switch len(successes) {
	case 0:
		return result(nil, types.ConsensusReport{}, metrics), nil
	case 1:
		// A lone response is its own consensus; clustering is skipped.
		return result(successes[0].Value, types.ConsensusReport{
			Achieved:   a.achieved(strategy, 1.0, 1),
			Confidence: 1.0,
			Agreement:  1,
		}, metrics), nil
	}

	values := make([]types.Value, len(successes))
	for i, r := range successes {
		values[i] = r.Value
	}

	clusters, err := Cluster(ctx, values, a.scorer, a.config.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	winner := clusters[largestCluster(clusters)]
	confidence := a.confidence(strategy, round, successes, winner)
	// Clusters are built in ascending index order, so the first member
	// is the lowest selection index.
	representative := successes[winner[0]]

	value := representative.Value
	if strategy == StrategySynthesized {
		value = a.synthesize(ctx, successes, winner, value)
	}

	return result(value, types.ConsensusReport{
		Achieved:   a.achieved(strategy, confidence, len(winner)),
		Confidence: confidence,
		Agreement:  len(winner),
	}, metrics), nil
}

// confidence is the winner's share of responses, by raw count or by
// reputation weight for weighted-vote.
func (a *Aggregator) confidence(strategy Strategy, round Round, successes []types.AgentResponse, winner []int) float64 {
	if strategy == StrategyWeightedVote {
		var total, cluster float64
		for i, r := range successes {
			w := round.Reputations[r.PeerID]
			if w < 0 {
				w = 0
			}
			total += w
			if containsIndex(winner, i) {
				cluster += w
			}
		}
		if total > 0 {
			return cluster / total
		}
		// Every weight zero: fall back to raw counts.
	}
	return float64(len(winner)) / float64(len(successes))
}

func (a *Aggregator) achieved(strategy Strategy, confidence float64, clusterSize int) bool {
	switch strategy {
	case StrategyConsensusThreshold, StrategySynthesized:
		return confidence >= a.config.ConsensusThreshold && clusterSize >= a.config.MinAgents
	default:
		return confidence >= 0.5
	}
}

// synthesize asks the external summarizer for a combined text over the
// cluster members; on any failure the representative stands.
func (a *Aggregator) synthesize(ctx context.Context, successes []types.AgentResponse, winner []int, fallback types.Value) types.Value {
	if a.synth == nil {
		return fallback
	}
	texts := make([]string, len(winner))
	for i, idx := range winner {
		texts[i] = successes[idx].Value.Text()
	}
	synthesized, err := a.synth.Synthesize(ctx, texts)
	if err != nil {
		a.logger.Warn("synthesis failed, keeping representative response", zap.Error(err))
		return fallback
	}
	return types.TextValue(synthesized)
}

func containsIndex(indices []int, i int) bool {
	for _, idx := range indices {
		if idx == i {
			return true
		}
	}
	return false
}

func result(value types.Value, consensus types.ConsensusReport, metrics types.RoundMetrics) *types.AggregatedResult {
	text := ""
	if value != nil {
		text = value.Text()
	}
	return &types.AggregatedResult{
		Value:     value,
		Text:      text,
		Consensus: consensus,
		Metrics:   metrics,
	}
}
