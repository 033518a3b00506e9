// Package loadstate tracks per-peer load counters and circuit-breaker
// state across orchestration rounds. The tracker is owned by the host
// and passed explicitly through the call chain; it is never a global.
//
// Counters are mutated only from the dispatch coordinator's completion
// path, but the tracker still locks internally because cursors and
// breaker state are shared across rounds that may run in parallel.
package loadstate

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config configures circuit-breaker behavior.
type Config struct {
	// BreakerThreshold is the number of consecutive failures that opens
	// a peer's breaker.
	BreakerThreshold int `json:"breaker_threshold" yaml:"breaker_threshold"`

	// BreakerCooldown is how long an open breaker excludes a peer from
	// selection.
	BreakerCooldown time.Duration `json:"breaker_cooldown" yaml:"breaker_cooldown"`

	// BreakerDisabled turns circuit-breaker bookkeeping off entirely.
	// Load counters are still kept; IsOpen always reports false.
	BreakerDisabled bool `json:"breaker_disabled" yaml:"breaker_disabled"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// PeerLoadState holds the per-peer request counters.
type PeerLoadState struct {
	PeerID         string `json:"peer_id"`
	ActiveRequests int    `json:"active_requests"`
	TotalRequests  int    `json:"total_requests"`
	SuccessCount   int    `json:"success_count"`
	FailureCount   int    `json:"failure_count"`
	TotalLatencyMs int64  `json:"total_latency_ms"`
}

// SuccessRate returns successes over total requests, 1.0 when the peer
// has never been asked.
func (s PeerLoadState) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 1.0
	}
	return float64(s.SuccessCount) / float64(s.TotalRequests)
}

// AverageLatency returns mean latency over successes, 0 when there are
// no successes.
func (s PeerLoadState) AverageLatency() time.Duration {
	if s.SuccessCount == 0 {
		return 0
	}
	return time.Duration(s.TotalLatencyMs/int64(s.SuccessCount)) * time.Millisecond
}

// BreakerState holds the per-peer circuit-breaker state.
type BreakerState struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenUntil           time.Time `json:"open_until"`
}

// Tracker owns load and breaker state for every known peer.
type Tracker struct {
	config Config
	logger *zap.Logger

	mu       sync.Mutex
	load     map[string]*PeerLoadState
	breakers map[string]*BreakerState
	now      func() time.Time
}

// NewTracker creates a tracker. A zero-valued config is replaced with
// defaults.
func NewTracker(config Config, logger *zap.Logger) *Tracker {
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = DefaultConfig().BreakerThreshold
	}
	if config.BreakerCooldown <= 0 {
		config.BreakerCooldown = DefaultConfig().BreakerCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		config:   config,
		logger:   logger.With(zap.String("component", "load_tracker")),
		load:     make(map[string]*PeerLoadState),
		breakers: make(map[string]*BreakerState),
		now:      time.Now,
	}
}

func (t *Tracker) loadFor(peerID string) *PeerLoadState {
	s, ok := t.load[peerID]
	if !ok {
		s = &PeerLoadState{PeerID: peerID}
		t.load[peerID] = s
	}
	return s
}

func (t *Tracker) breakerFor(peerID string) *BreakerState {
	b, ok := t.breakers[peerID]
	if !ok {
		b = &BreakerState{}
		t.breakers[peerID] = b
	}
	return b
}

// Begin records a request going in flight to the peer.
func (t *Tracker) Begin(peerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loadFor(peerID).ActiveRequests++
}

// Complete records the outcome of one request. Exactly one Complete
// call is made per completed or failed request; abandoned requests
// never reach it.
func (t *Tracker) Complete(peerID string, success bool, latencyMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.loadFor(peerID)
	if s.ActiveRequests > 0 {
		s.ActiveRequests--
	}
	s.TotalRequests++

	if success {
		s.SuccessCount++
		s.TotalLatencyMs += latencyMs
	} else {
		s.FailureCount++
	}

	if t.config.BreakerDisabled {
		return
	}

	b := t.breakerFor(peerID)
	if success {
		b.ConsecutiveFailures = 0
		b.OpenUntil = time.Time{}
		return
	}

	b.ConsecutiveFailures++
	if b.ConsecutiveFailures >= t.config.BreakerThreshold {
		b.OpenUntil = t.now().Add(t.config.BreakerCooldown)
		t.logger.Warn("circuit breaker opened",
			zap.String("peer_id", peerID),
			zap.Int("consecutive_failures", b.ConsecutiveFailures),
			zap.Time("open_until", b.OpenUntil),
		)
	}
}

// Abandon releases the in-flight slot of a request the coordinator
// stopped waiting for at the global timeout. Totals and breaker state
// are untouched: an abandoned request is neither a success nor a
// failure.
func (t *Tracker) Abandon(peerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.loadFor(peerID)
	if s.ActiveRequests > 0 {
		s.ActiveRequests--
	}
}

// IsOpen reports whether the peer's circuit breaker currently excludes
// it from selection.
func (t *Tracker) IsOpen(peerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.BreakerDisabled {
		return false
	}
	b, ok := t.breakers[peerID]
	if !ok {
		return false
	}
	return !b.OpenUntil.IsZero() && t.now().Before(b.OpenUntil)
}

// Load returns a copy of the peer's load state. Unknown peers report
// zeroed counters.
func (t *Tracker) Load(peerID string) PeerLoadState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.load[peerID]; ok {
		copy := *s
		return copy
	}
	return PeerLoadState{PeerID: peerID}
}

// Breaker returns a copy of the peer's breaker state.
func (t *Tracker) Breaker(peerID string) BreakerState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.breakers[peerID]; ok {
		return *b
	}
	return BreakerState{}
}

// Snapshot returns a copy of every peer's load state.
func (t *Tracker) Snapshot() map[string]PeerLoadState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]PeerLoadState, len(t.load))
	for id, s := range t.load {
		out[id] = *s
	}
	return out
}

// Reset zeroes all peers' load and breaker state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.load = make(map[string]*PeerLoadState)
	t.breakers = make(map[string]*BreakerState)
	t.logger.Info("load tracker reset")
}

// Import replaces the tracker's load state with a previously exported
// snapshot. Breakers are not restored; an imported process starts with
// every breaker closed.
func (t *Tracker) Import(snapshot map[string]PeerLoadState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.load = make(map[string]*PeerLoadState, len(snapshot))
	for id, s := range snapshot {
		copy := s
		copy.PeerID = id
		copy.ActiveRequests = 0
		t.load[id] = &copy
	}
}
