package selection

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/agentmesh/agentmesh/loadstate"
	"github.com/agentmesh/agentmesh/types"
)

func match(id string, score, reputation float64) types.CapabilityMatch {
	return types.CapabilityMatch{
		Peer:       types.PeerInfo{ID: id, Reputation: reputation},
		MatchScore: score,
	}
}

func matchSet(ids ...string) []types.CapabilityMatch {
	out := make([]types.CapabilityMatch, len(ids))
	for i, id := range ids {
		out[i] = match(id, 1.0, 0.5)
	}
	return out
}

func selectedIDs(matches []types.CapabilityMatch) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Peer.ID
	}
	return ids
}

func TestSelect_All(t *testing.T) {
	s := NewSelector(Weights{}, zap.NewNop())
	got := s.Select(matchSet("a", "b", "c"), StrategyAll, 1, "", nil)
	assert.Equal(t, []string{"a", "b", "c"}, selectedIDs(got))
}

func TestSelect_TopN(t *testing.T) {
	s := NewSelector(Weights{}, nil)
	matches := []types.CapabilityMatch{
		match("a", 1.0, 0),
		match("b", 0.8, 0),
		match("c", 0.5, 0),
	}

	got := s.Select(matches, StrategyTopN, 2, "", nil)
	assert.Equal(t, []string{"a", "b"}, selectedIDs(got))
}

func TestSelect_FewerEligibleThanRequested(t *testing.T) {
	s := NewSelector(Weights{}, nil)
	got := s.Select(matchSet("a", "b"), StrategyTopN, 5, "", nil)
	assert.Equal(t, []string{"a", "b"}, selectedIDs(got))

	got = s.Select(matchSet("a", "b"), StrategyRoundRobin, 5, "k", nil)
	assert.Len(t, got, 2)
}

func TestSelect_RoundRobinAdvancesCursor(t *testing.T) {
	s := NewSelector(Weights{}, nil)
	matches := matchSet("a", "b", "c", "d")

	first := s.Select(matches, StrategyRoundRobin, 2, "math", nil)
	second := s.Select(matches, StrategyRoundRobin, 2, "math", nil)
	third := s.Select(matches, StrategyRoundRobin, 2, "math", nil)

	assert.Equal(t, []string{"a", "b"}, selectedIDs(first))
	assert.Equal(t, []string{"c", "d"}, selectedIDs(second))
	// Wrapped around.
	assert.Equal(t, []string{"a", "b"}, selectedIDs(third))
}

func TestSelect_RoundRobinCursorIsPerBucket(t *testing.T) {
	s := NewSelector(Weights{}, nil)
	matches := matchSet("a", "b", "c")

	s.Select(matches, StrategyRoundRobin, 2, "math", nil)
	other := s.Select(matches, StrategyRoundRobin, 2, "search", nil)

	// The search bucket starts from its own zero cursor.
	assert.Equal(t, []string{"a", "b"}, selectedIDs(other))
}

func TestSelect_ExcludesOpenBreakers(t *testing.T) {
	tracker := loadstate.NewTracker(loadstate.Config{
		BreakerThreshold: 1,
		BreakerCooldown:  time.Minute,
	}, nil)
	tracker.Begin("b")
	tracker.Complete("b", false, 10)

	s := NewSelector(Weights{}, nil)
	for _, strategy := range []Strategy{StrategyAll, StrategyRoundRobin, StrategyWeighted, StrategyTopN} {
		got := s.Select(matchSet("a", "b", "c"), strategy, 3, "k"+string(strategy), tracker)
		assert.NotContains(t, selectedIDs(got), "b", "strategy %s must skip open breakers", strategy)
	}
}

func TestSelect_AllIneligibleReturnsNil(t *testing.T) {
	tracker := loadstate.NewTracker(loadstate.Config{
		BreakerThreshold: 1,
		BreakerCooldown:  time.Minute,
	}, nil)
	tracker.Begin("a")
	tracker.Complete("a", false, 10)

	s := NewSelector(Weights{}, nil)
	got := s.Select(matchSet("a"), StrategyAll, 1, "", tracker)
	assert.Empty(t, got)
}

func TestSelect_WeightedPrefersLessLoaded(t *testing.T) {
	tracker := loadstate.NewTracker(loadstate.DefaultConfig(), nil)
	// "a" has 4 requests in flight, "b" none.
	for i := 0; i < 4; i++ {
		tracker.Begin("a")
	}

	s := NewSelector(DefaultWeights(), nil)
	matches := []types.CapabilityMatch{
		match("a", 1.0, 0.5),
		match("b", 1.0, 0.5),
	}

	got := s.Select(matches, StrategyWeighted, 1, "", tracker)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Peer.ID)
}

func TestSelect_WeightedPrefersReputation(t *testing.T) {
	s := NewSelector(DefaultWeights(), nil)
	matches := []types.CapabilityMatch{
		match("low", 0.9, 0.1),
		match("high", 0.9, 0.9),
	}

	got := s.Select(matches, StrategyWeighted, 1, "", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "high", got[0].Peer.ID)
}

func TestSelector_CursorExportImport(t *testing.T) {
	s := NewSelector(Weights{}, nil)
	s.Select(matchSet("a", "b", "c", "d"), StrategyRoundRobin, 2, "math", nil)

	cursors := s.Cursors()
	assert.Equal(t, 2, cursors["math"])

	restored := NewSelector(Weights{}, nil)
	restored.SetCursors(cursors)
	got := restored.Select(matchSet("a", "b", "c", "d"), StrategyRoundRobin, 2, "math", nil)
	assert.Equal(t, []string{"c", "d"}, selectedIDs(got))
}

// Property: with agentCount dividing the peer count evenly, round-robin
// visits every peer exactly once per full cycle.
func TestSelect_RoundRobinCoverageProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		agentCount := rapid.IntRange(1, 4).Draw(t, "agentCount")
		cycles := rapid.IntRange(1, 3).Draw(t, "cycles")
		n := agentCount * rapid.IntRange(1, 5).Draw(t, "multiple")

		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("peer-%02d", i)
		}
		matches := matchSet(ids...)

		s := NewSelector(Weights{}, nil)
		seen := make(map[string]int)
		callsPerCycle := n / agentCount
		for c := 0; c < cycles*callsPerCycle; c++ {
			for _, m := range s.Select(matches, StrategyRoundRobin, agentCount, "bucket", nil) {
				seen[m.Peer.ID]++
			}
		}

		require.Len(t, seen, n, "every peer must be visited")
		for id, count := range seen {
			assert.Equal(t, cycles, count, "peer %s visit count", id)
		}
	})
}
