// Package dispatch issues a query to the selected peers concurrently
// and collects their responses under a shared timeout.
//
// One goroutine runs per peer with unbounded fan-out; no peer waits
// for another. All load-tracker and circuit-breaker mutation happens
// in the single coordinating goroutine as completion events arrive, so
// counters never race. The global timeout cancels the wait, not the
// in-flight calls: requests still pending when it fires are abandoned
// and their eventual completions discarded.
package dispatch

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/agentmesh/agentmesh/loadstate"
	"github.com/agentmesh/agentmesh/types"
)

// Request is one outbound peer request. The payload is opaque to the
// engine; the correlation ID lets the messaging collaborator match the
// response.
type Request struct {
	CorrelationID string `json:"correlation_id"`
	Payload       []byte `json:"payload"`
}

// Transport delivers a request to a peer and returns its response
// value. Supplied by the messaging collaborator; implementations must
// honor context cancellation.
type Transport interface {
	Send(ctx context.Context, peerID string, req *Request) (types.Value, error)
}

// Config configures a dispatch round.
type Config struct {
	// Timeout is the shared deadline every request races against.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// AllowPartialResults lets a round proceed with the completed
	// subset when the timeout fires; otherwise the round fails.
	AllowPartialResults bool `json:"allow_partial_results" yaml:"allow_partial_results"`

	// RatePerSecond caps outbound request rate across the round when
	// positive; 0 disables limiting.
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`

	// RateBurst is the limiter burst size when limiting is on.
	RateBurst int `json:"rate_burst" yaml:"rate_burst"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Second,
		AllowPartialResults: true,
	}
}

// Result is the outcome of one dispatch round. Responses holds only
// completed requests, ordered by selection index; Dispatched counts
// every peer asked.
type Result struct {
	Responses  []types.AgentResponse
	Dispatched int
	Elapsed    time.Duration
}

// Coordinator fans queries out to peers and owns all tracker mutation.
type Coordinator struct {
	transport Transport
	tracker   *loadstate.Tracker
	config    Config
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewCoordinator creates a dispatch coordinator.
func NewCoordinator(transport Transport, tracker *loadstate.Tracker, config Config, logger *zap.Logger) *Coordinator {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if config.RatePerSecond > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}
	return &Coordinator{
		transport: transport,
		tracker:   tracker,
		config:    config,
		limiter:   limiter,
		logger:    logger.With(zap.String("component", "dispatch")),
	}
}

// event is one per-peer outcome reported to the collect loop. An
// abandoned event means the request was never delivered (the rate
// limiter gave up under the round deadline); it releases the peer's
// in-flight slot without counting as a peer failure.
type event struct {
	resp      types.AgentResponse
	abandoned bool
}

// Dispatch queries every peer concurrently and waits until all
// complete or the shared timeout fires.
func (c *Coordinator) Dispatch(ctx context.Context, peers []types.PeerInfo, payload []byte) (*Result, error) {
	n := len(peers)
	start := time.Now()

	dctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	// Buffered to n so abandoned requests never block on send; their
	// events are simply never read.
	events := make(chan event, n)

	for i, peer := range peers {
		c.tracker.Begin(peer.ID)
		go c.send(dctx, i, peer, payload, events)
	}

	responses := make([]types.AgentResponse, 0, n)
	settledPeers := make(map[string]bool, n)
	abandoned := 0
	timedOut := false

collect:
	for len(responses)+abandoned < n {
		select {
		case ev := <-events:
			settledPeers[ev.resp.PeerID] = true
			if ev.abandoned {
				c.tracker.Abandon(ev.resp.PeerID)
				abandoned++
				continue
			}
			c.tracker.Complete(ev.resp.PeerID, ev.resp.Success, ev.resp.LatencyMs)
			responses = append(responses, ev.resp)
		case <-dctx.Done():
			timedOut = true
			break collect
		}
	}

	if timedOut {
		for _, peer := range peers {
			if !settledPeers[peer.ID] {
				c.tracker.Abandon(peer.ID)
			}
		}
		// The caller giving up is not a timeout outcome; surface its
		// cancellation as-is.
		if err := ctx.Err(); err != nil {
			c.logger.Warn("dispatch cancelled by caller",
				zap.Int("completed", len(responses)),
				zap.Int("dispatched", n),
			)
			return nil, err
		}
	}

	if (timedOut || abandoned > 0) && !c.config.AllowPartialResults {
		return nil, types.Errorf(types.ErrPartialResultsDisallowed,
			"%d of %d peers completed before the %s timeout",
			len(responses), n, c.config.Timeout)
	}
	if timedOut {
		c.logger.Warn("dispatch timed out, proceeding with partial results",
			zap.Int("completed", len(responses)),
			zap.Int("dispatched", n),
		)
	}

	// Completion order is arbitrary; downstream tie-breaks need the
	// original selection order.
	sort.Slice(responses, func(i, j int) bool {
		return responses[i].Index < responses[j].Index
	})

	return &Result{
		Responses:  responses,
		Dispatched: n,
		Elapsed:    time.Since(start),
	}, nil
}

// send runs in its own goroutine, one per peer. It never touches the
// tracker; it only reports a completion event.
func (c *Coordinator) send(ctx context.Context, index int, peer types.PeerInfo, payload []byte, events chan<- event) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			// Back-pressure from our own limiter is not the peer's
			// fault; report abandonment, not failure.
			c.logger.Debug("rate limiter aborted request",
				zap.String("peer_id", peer.ID),
				zap.Error(err),
			)
			events <- event{
				resp:      types.AgentResponse{PeerID: peer.ID, Index: index},
				abandoned: true,
			}
			return
		}
	}

	req := &Request{
		CorrelationID: uuid.NewString(),
		Payload:       payload,
	}

	reqStart := time.Now()
	value, err := c.transport.Send(ctx, peer.ID, req)
	latencyMs := time.Since(reqStart).Milliseconds()

	if err != nil {
		c.logger.Debug("peer request failed",
			zap.String("peer_id", peer.ID),
			zap.String("correlation_id", req.CorrelationID),
			zap.Error(err),
		)
		events <- event{resp: failureResponse(index, peer.ID, latencyMs, err)}
		return
	}

	events <- event{resp: types.AgentResponse{
		PeerID:    peer.ID,
		Index:     index,
		Value:     value,
		LatencyMs: latencyMs,
		Success:   true,
	}}
}

func failureResponse(index int, peerID string, latencyMs int64, err error) types.AgentResponse {
	return types.AgentResponse{
		PeerID:    peerID,
		Index:     index,
		LatencyMs: latencyMs,
		Success:   false,
		Error:     err.Error(),
	}
}
