package loadstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTracker(threshold int) *Tracker {
	return NewTracker(Config{
		BreakerThreshold: threshold,
		BreakerCooldown:  time.Minute,
	}, zap.NewNop())
}

func TestTracker_CountersPerRequest(t *testing.T) {
	tr := newTestTracker(3)

	tr.Begin("p1")
	assert.Equal(t, 1, tr.Load("p1").ActiveRequests)

	tr.Complete("p1", true, 120)
	s := tr.Load("p1")
	assert.Equal(t, 0, s.ActiveRequests)
	assert.Equal(t, 1, s.TotalRequests)
	assert.Equal(t, 1, s.SuccessCount)
	assert.Equal(t, 0, s.FailureCount)
	assert.Equal(t, int64(120), s.TotalLatencyMs)

	tr.Begin("p1")
	tr.Complete("p1", false, 300)
	s = tr.Load("p1")
	assert.Equal(t, 2, s.TotalRequests)
	assert.Equal(t, 1, s.FailureCount)
	// Latency accumulates on success only.
	assert.Equal(t, int64(120), s.TotalLatencyMs)
}

func TestPeerLoadState_Derived(t *testing.T) {
	// Never-asked peer: success rate 1.0, latency 0.
	fresh := PeerLoadState{}
	assert.Equal(t, 1.0, fresh.SuccessRate())
	assert.Equal(t, time.Duration(0), fresh.AverageLatency())

	s := PeerLoadState{TotalRequests: 4, SuccessCount: 3, TotalLatencyMs: 300}
	assert.InDelta(t, 0.75, s.SuccessRate(), 1e-9)
	assert.Equal(t, 100*time.Millisecond, s.AverageLatency())
}

func TestTracker_BreakerOpensAtThreshold(t *testing.T) {
	tr := newTestTracker(3)

	for i := 0; i < 2; i++ {
		tr.Begin("p1")
		tr.Complete("p1", false, 10)
	}
	assert.False(t, tr.IsOpen("p1"), "below threshold must stay closed")

	tr.Begin("p1")
	tr.Complete("p1", false, 10)
	assert.True(t, tr.IsOpen("p1"))
	assert.Equal(t, 3, tr.Breaker("p1").ConsecutiveFailures)
}

func TestTracker_BreakerResetsOnSuccess(t *testing.T) {
	tr := newTestTracker(2)

	tr.Begin("p1")
	tr.Complete("p1", false, 10)
	tr.Begin("p1")
	tr.Complete("p1", false, 10)
	require.True(t, tr.IsOpen("p1"))

	tr.Begin("p1")
	tr.Complete("p1", true, 10)
	assert.False(t, tr.IsOpen("p1"))
	assert.Equal(t, 0, tr.Breaker("p1").ConsecutiveFailures)
}

func TestTracker_BreakerCooldownExpires(t *testing.T) {
	tr := newTestTracker(1)
	now := time.Now()
	tr.now = func() time.Time { return now }

	tr.Begin("p1")
	tr.Complete("p1", false, 10)
	assert.True(t, tr.IsOpen("p1"))

	now = now.Add(2 * time.Minute)
	assert.False(t, tr.IsOpen("p1"), "breaker must close after cooldown")
}

func TestTracker_Reset(t *testing.T) {
	tr := newTestTracker(1)
	tr.Begin("p1")
	tr.Complete("p1", false, 10)
	require.True(t, tr.IsOpen("p1"))

	tr.Reset()
	assert.False(t, tr.IsOpen("p1"))
	assert.Equal(t, PeerLoadState{PeerID: "p1"}, tr.Load("p1"))
}

func TestTracker_SnapshotAndImport(t *testing.T) {
	tr := newTestTracker(5)
	tr.Begin("p1")
	tr.Complete("p1", true, 50)
	tr.Begin("p2")
	tr.Complete("p2", false, 80)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)

	restored := newTestTracker(5)
	restored.Import(snap)
	assert.Equal(t, 1, restored.Load("p1").SuccessCount)
	assert.Equal(t, 1, restored.Load("p2").FailureCount)
	// Active counts never survive an import.
	assert.Equal(t, 0, restored.Load("p1").ActiveRequests)
}

func TestTracker_BreakerDisabledNeverOpens(t *testing.T) {
	tr := NewTracker(Config{
		BreakerThreshold: 1,
		BreakerCooldown:  time.Minute,
		BreakerDisabled:  true,
	}, zap.NewNop())

	for i := 0; i < 5; i++ {
		tr.Begin("p1")
		tr.Complete("p1", false, 10)
	}

	assert.False(t, tr.IsOpen("p1"), "disabled breaker must never open")
	require.Equal(t, 0, tr.Breaker("p1").ConsecutiveFailures)

	// Load counters still accumulate.
	s := tr.Load("p1")
	assert.Equal(t, 5, s.TotalRequests)
	assert.Equal(t, 5, s.FailureCount)
}
