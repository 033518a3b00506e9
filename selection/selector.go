// Package selection chooses which matched peers to query in a round.
//
// Every strategy operates on the matcher's ranked output after peers
// with an open circuit breaker have been removed. When fewer peers
// remain eligible than requested, the selector returns all of them:
// it never errors and never pads with ineligible peers.
package selection

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/agentmesh/agentmesh/loadstate"
	"github.com/agentmesh/agentmesh/types"
)

// Strategy identifies a peer-selection strategy.
type Strategy string

const (
	// StrategyAll selects every eligible match regardless of count.
	StrategyAll Strategy = "all"
	// StrategyRoundRobin walks the eligible list with a persistent
	// cursor per query bucket.
	StrategyRoundRobin Strategy = "round-robin"
	// StrategyWeighted ranks by a composite of match score, load, and
	// reputation.
	StrategyWeighted Strategy = "weighted"
	// StrategyTopN takes the best matches by match score alone.
	StrategyTopN Strategy = "top-n"
)

// DefaultAgentCount is used when a count-bounded strategy is invoked
// without an explicit agent count.
const DefaultAgentCount = 3

// Weights configures the weighted strategy's composite score:
// w_match*matchScore + w_load*(1-normalizedLoad) + w_rep*normalizedReputation.
type Weights struct {
	Match      float64 `json:"match" yaml:"match"`
	Load       float64 `json:"load" yaml:"load"`
	Reputation float64 `json:"reputation" yaml:"reputation"`
}

// DefaultWeights returns the documented default weights.
func DefaultWeights() Weights {
	return Weights{Match: 0.5, Load: 0.3, Reputation: 0.2}
}

// LoadReader exposes the tracker state the selector consumes.
// *loadstate.Tracker satisfies it.
type LoadReader interface {
	IsOpen(peerID string) bool
	Load(peerID string) loadstate.PeerLoadState
}

// Selector applies selection strategies. Round-robin cursors persist
// across rounds and are mutated under a lock so concurrent rounds stay
// consistent.
type Selector struct {
	weights Weights
	logger  *zap.Logger

	mu      sync.Mutex
	cursors map[string]int
}

// NewSelector creates a selector. Zero weights fall back to defaults.
func NewSelector(weights Weights, logger *zap.Logger) *Selector {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		weights: weights,
		logger:  logger.With(zap.String("component", "selector")),
		cursors: make(map[string]int),
	}
}

// Select chooses the peers to query this round. bucketKey scopes the
// round-robin cursor (use the query's BucketKey). agentCount <= 0 uses
// DefaultAgentCount for count-bounded strategies.
func (s *Selector) Select(matches []types.CapabilityMatch, strategy Strategy, agentCount int, bucketKey string, loads LoadReader) []types.CapabilityMatch {
	eligible := s.filterOpen(matches, loads)
	if len(eligible) == 0 {
		return nil
	}
	if agentCount <= 0 {
		agentCount = DefaultAgentCount
	}

	switch strategy {
	case StrategyAll:
		return eligible
	case StrategyRoundRobin:
		return s.roundRobin(eligible, agentCount, bucketKey)
	case StrategyWeighted:
		return s.weighted(eligible, agentCount, loads)
	case StrategyTopN:
		return s.topN(eligible, agentCount)
	default:
		s.logger.Warn("unknown selection strategy, falling back to top-n",
			zap.String("strategy", string(strategy)),
		)
		return s.topN(eligible, agentCount)
	}
}

// filterOpen drops peers whose circuit breaker is open.
func (s *Selector) filterOpen(matches []types.CapabilityMatch, loads LoadReader) []types.CapabilityMatch {
	if loads == nil {
		return matches
	}
	eligible := make([]types.CapabilityMatch, 0, len(matches))
	for _, m := range matches {
		if loads.IsOpen(m.Peer.ID) {
			s.logger.Debug("peer skipped, circuit open", zap.String("peer_id", m.Peer.ID))
			continue
		}
		eligible = append(eligible, m)
	}
	return eligible
}

func (s *Selector) roundRobin(eligible []types.CapabilityMatch, agentCount int, bucketKey string) []types.CapabilityMatch {
	n := len(eligible)

	s.mu.Lock()
	start := s.cursors[bucketKey] % n
	s.cursors[bucketKey] = (start + agentCount) % n
	s.mu.Unlock()

	take := agentCount
	if take > n {
		take = n
	}
	out := make([]types.CapabilityMatch, 0, take)
	for i := 0; i < take; i++ {
		out = append(out, eligible[(start+i)%n])
	}
	return out
}

func (s *Selector) weighted(eligible []types.CapabilityMatch, agentCount int, loads LoadReader) []types.CapabilityMatch {
	maxActive, maxRep := 0, 0.0
	active := make([]int, len(eligible))
	for i, m := range eligible {
		if loads != nil {
			active[i] = loads.Load(m.Peer.ID).ActiveRequests
		}
		if active[i] > maxActive {
			maxActive = active[i]
		}
		if m.Peer.Reputation > maxRep {
			maxRep = m.Peer.Reputation
		}
	}

	type scored struct {
		match types.CapabilityMatch
		score float64
		index int
	}
	ranked := make([]scored, len(eligible))
	for i, m := range eligible {
		normLoad, normRep := 0.0, 0.0
		if maxActive > 0 {
			normLoad = float64(active[i]) / float64(maxActive)
		}
		if maxRep > 0 {
			normRep = m.Peer.Reputation / maxRep
		}
		ranked[i] = scored{
			match: m,
			score: s.weights.Match*m.MatchScore + s.weights.Load*(1-normLoad) + s.weights.Reputation*normRep,
			index: i,
		}
	}

	// Stable on the matcher's order so equal composites keep the
	// documented tie-break chain.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})

	if agentCount > len(ranked) {
		agentCount = len(ranked)
	}
	out := make([]types.CapabilityMatch, agentCount)
	for i := 0; i < agentCount; i++ {
		out[i] = ranked[i].match
	}
	return out
}

func (s *Selector) topN(eligible []types.CapabilityMatch, agentCount int) []types.CapabilityMatch {
	// The matcher's output is already sorted by match score with
	// deterministic tie-breaks.
	if agentCount > len(eligible) {
		agentCount = len(eligible)
	}
	out := make([]types.CapabilityMatch, agentCount)
	copy(out, eligible[:agentCount])
	return out
}

// Cursors returns a copy of the round-robin cursor map for state
// export.
func (s *Selector) Cursors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.cursors))
	for k, v := range s.cursors {
		out[k] = v
	}
	return out
}

// SetCursors replaces the cursor map, used when importing persisted
// state.
func (s *Selector) SetCursors(cursors map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors = make(map[string]int, len(cursors))
	for k, v := range cursors {
		s.cursors[k] = v
	}
}
