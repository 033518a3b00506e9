package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/agentmesh/agentmesh/config"
	"github.com/agentmesh/agentmesh/consensus"
	"github.com/agentmesh/agentmesh/discovery"
	"github.com/agentmesh/agentmesh/dispatch"
	"github.com/agentmesh/agentmesh/embedding"
	"github.com/agentmesh/agentmesh/internal/metrics"
	"github.com/agentmesh/agentmesh/loadstate"
	"github.com/agentmesh/agentmesh/selection"
	"github.com/agentmesh/agentmesh/similarity"
	"github.com/agentmesh/agentmesh/state"
	"github.com/agentmesh/agentmesh/types"
)

// Options configures a new Engine. Transport is required; everything
// else has a working default.
type Options struct {
	// Transport delivers requests to peers.
	Transport dispatch.Transport

	// Config holds the resolved configuration; nil uses defaults.
	Config *config.Config

	// Scorer overrides the similarity engine built from Config. Used
	// for custom similarity functions.
	Scorer consensus.Scorer

	// Synthesizer backs the synthesized-consensus strategy. May be nil.
	Synthesizer consensus.Synthesizer

	// Store persists load history and cursors across restarts. May be
	// nil.
	Store state.Store

	// Registerer receives the engine's Prometheus instruments. Nil
	// disables metrics.
	Registerer prometheus.Registerer

	// Logger may be nil.
	Logger *zap.Logger
}

// Request is one orchestration request. Zero-valued strategy and count
// fields fall back to the configured defaults.
type Request struct {
	// Query names the capabilities the handling peers must have.
	Query types.CapabilityQuery

	// Payload is the opaque request body forwarded to each peer.
	Payload []byte

	// SelectionStrategy overrides the configured selection strategy.
	SelectionStrategy selection.Strategy

	// AggregationStrategy overrides the configured aggregation strategy.
	AggregationStrategy consensus.Strategy

	// AgentCount overrides the configured peer count.
	AgentCount int
}

// Engine is the orchestration engine. Safe for concurrent use.
type Engine struct {
	cfg         *config.Config
	directory   *discovery.Directory
	selector    *selection.Selector
	tracker     *loadstate.Tracker
	coordinator *dispatch.Coordinator
	aggregator  *consensus.Aggregator
	store       state.Store
	collector   *metrics.Collector
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewEngine builds an engine from options.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Transport == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "transport is required")
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	scorer := opts.Scorer
	if scorer == nil {
		if cfg.Similarity.Enabled {
			scorer = similarity.NewEngine(
				similarity.Method(cfg.Similarity.Method),
				buildEmbeddingProvider(cfg.Embedding),
				nil,
				logger,
			)
		} else {
			scorer = similarity.Exact{}
		}
	}

	trackerCfg := loadstate.Config{
		BreakerThreshold: cfg.CircuitBreaker.FailureThreshold,
		BreakerCooldown:  cfg.CircuitBreaker.Cooldown,
		BreakerDisabled:  !cfg.CircuitBreaker.Enabled,
	}
	tracker := loadstate.NewTracker(trackerCfg, logger)

	weights := selectionWeights(cfg.LoadBalancing)

	dispatchCfg := dispatch.Config{
		Timeout:             cfg.Orchestration.Timeout,
		AllowPartialResults: cfg.Orchestration.AllowPartialResults,
		RatePerSecond:       cfg.Orchestration.RatePerSecond,
		RateBurst:           cfg.Orchestration.RateBurst,
	}

	aggCfg := consensus.Config{
		SimilarityThreshold: cfg.Similarity.Threshold,
		ConsensusThreshold:  cfg.Consensus.ConsensusThreshold,
		MinAgents:           cfg.Consensus.MinAgents,
	}

	var collector *metrics.Collector
	if opts.Registerer != nil {
		collector = metrics.NewCollector("agentmesh", opts.Registerer)
	}

	return &Engine{
		cfg:         cfg,
		directory:   discovery.NewDirectory(logger),
		selector:    selection.NewSelector(weights, logger),
		tracker:     tracker,
		coordinator: dispatch.NewCoordinator(opts.Transport, tracker, dispatchCfg, logger),
		aggregator:  consensus.NewAggregator(aggCfg, scorer, opts.Synthesizer, logger),
		store:       opts.Store,
		collector:   collector,
		tracer:      otel.Tracer("github.com/agentmesh/agentmesh/orchestrator"),
		logger:      logger.With(zap.String("component", "engine")),
	}, nil
}

// selectionWeights translates the load-balancing settings into weights
// for the weighted selection strategy. Disabling load balancing or
// turning off prefer-less-loaded zeroes the load term.
func selectionWeights(cfg config.LoadBalancingConfig) selection.Weights {
	if !cfg.Enabled {
		// Load-blind weighting: match score and reputation only.
		return selection.Weights{Match: 0.7, Load: 0, Reputation: 0.3}
	}
	w := selection.Weights{
		Match:      cfg.ScoreWeight,
		Load:       cfg.LoadWeight,
		Reputation: cfg.ReputationWeight,
	}
	if !cfg.PreferLessLoaded {
		w.Load = 0
	}
	return w
}

func buildEmbeddingProvider(cfg config.EmbeddingConfig) embedding.Provider {
	switch cfg.Provider {
	case "openai":
		return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		})
	case "jina":
		return embedding.NewJinaProvider(embedding.JinaConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		})
	default:
		return nil
	}
}

// RegisterPeer adds or replaces a peer in the directory.
func (e *Engine) RegisterPeer(peer types.PeerInfo) {
	e.directory.Upsert(peer)
}

// RemovePeer drops a peer from the directory. Its load history is kept
// in case it re-registers.
func (e *Engine) RemovePeer(peerID string) {
	e.directory.Remove(peerID)
}

// UpdateReputation sets a peer's reputation signal.
func (e *Engine) UpdateReputation(peerID string, reputation float64) {
	e.directory.UpdateReputation(peerID, reputation)
}

// Peers lists the registered peers.
func (e *Engine) Peers() []types.PeerInfo {
	return e.directory.List()
}

// LoadState returns a copy of a peer's load counters.
func (e *Engine) LoadState(peerID string) loadstate.PeerLoadState {
	return e.tracker.Load(peerID)
}

// Orchestrate runs one full round: match, select, dispatch, aggregate.
func (e *Engine) Orchestrate(ctx context.Context, req Request) (*types.AggregatedResult, error) {
	roundID := uuid.NewString()

	selStrategy := req.SelectionStrategy
	if selStrategy == "" {
		selStrategy = selection.Strategy(e.cfg.Orchestration.SelectionStrategy)
	}
	aggStrategy := req.AggregationStrategy
	if aggStrategy == "" {
		aggStrategy = consensus.Strategy(e.cfg.Consensus.AggregationStrategy)
	}
	agentCount := req.AgentCount
	if agentCount <= 0 {
		agentCount = e.cfg.Orchestration.AgentCount
	}

	ctx, span := e.tracer.Start(ctx, "orchestrator.Orchestrate",
		trace.WithAttributes(
			attribute.String("round_id", roundID),
			attribute.String("selection_strategy", string(selStrategy)),
			attribute.String("aggregation_strategy", string(aggStrategy)),
		))
	defer span.End()

	logger := e.logger.With(zap.String("round_id", roundID))

	matches := discovery.Match(e.directory.List(), req.Query)
	if len(matches) == 0 {
		logger.Warn("no peers match query")
		e.recordRound(aggStrategy, "no_match", 0)
		return nil, types.NewError(types.ErrNoMatchingPeers, "no peers match the capability query")
	}

	selected := e.selector.Select(matches, selStrategy, agentCount, req.Query.BucketKey(), e.tracker)
	if len(selected) == 0 {
		logger.Warn("no eligible peers", zap.Int("matched", len(matches)))
		e.recordRound(aggStrategy, "no_eligible", 0)
		return nil, types.NewError(types.ErrNoEligiblePeers,
			"all matching peers are excluded by open circuit breakers")
	}

	peers := make([]types.PeerInfo, len(selected))
	reputations := make(map[string]float64, len(selected))
	for i, m := range selected {
		peers[i] = m.Peer
		reputations[m.Peer.ID] = m.Peer.Reputation
	}

	logger.Info("dispatching round",
		zap.Int("matched", len(matches)),
		zap.Int("selected", len(selected)),
		zap.String("selection_strategy", string(selStrategy)),
	)

	dres, err := e.coordinator.Dispatch(ctx, peers, req.Payload)
	if err != nil {
		e.recordRound(aggStrategy, "dispatch_error", 0)
		span.RecordError(err)
		return nil, err
	}

	e.recordResponses(dres.Responses)

	round := consensus.Round{
		Responses:   dres.Responses,
		Dispatched:  dres.Dispatched,
		Elapsed:     dres.Elapsed,
		Reputations: reputations,
	}

	result, err := e.aggregator.Aggregate(ctx, aggStrategy, round)
	if err != nil {
		e.recordRound(aggStrategy, "aggregation_error", dres.Elapsed.Seconds())
		span.RecordError(err)
		return nil, err
	}

	e.recordRound(aggStrategy, "success", dres.Elapsed.Seconds())
	if e.collector != nil {
		e.collector.RecordConfidence(result.Consensus.Confidence)
	}
	span.SetAttributes(
		attribute.Bool("consensus_achieved", result.Consensus.Achieved),
		attribute.Float64("confidence", result.Consensus.Confidence),
	)

	logger.Info("round complete",
		zap.Bool("achieved", result.Consensus.Achieved),
		zap.Float64("confidence", result.Consensus.Confidence),
		zap.Int("agreement", result.Consensus.Agreement),
		zap.Duration("elapsed", dres.Elapsed),
	)

	return result, nil
}

func (e *Engine) recordRound(strategy consensus.Strategy, outcome string, seconds float64) {
	if e.collector == nil {
		return
	}
	e.collector.RecordRound(string(strategy), outcome, seconds)
}

func (e *Engine) recordResponses(responses []types.AgentResponse) {
	if e.collector == nil {
		return
	}
	for _, r := range responses {
		e.collector.RecordPeerRequest(r.PeerID, r.Success, float64(r.LatencyMs)/1000)
	}
}

// SaveState writes load history and selection cursors to the store.
// A nil store makes this a no-op.
func (e *Engine) SaveState(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.Save(ctx, state.Snapshot{
		LoadStates: e.tracker.Snapshot(),
		Cursors:    e.selector.Cursors(),
		SavedAt:    time.Now(),
	})
}

// RestoreState loads a previously saved snapshot, if any.
func (e *Engine) RestoreState(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	snap, ok, err := e.store.Load(ctx)
	if err != nil || !ok {
		return err
	}
	e.tracker.Import(snap.LoadStates)
	e.selector.SetCursors(snap.Cursors)
	e.logger.Info("state restored",
		zap.Int("peers", len(snap.LoadStates)),
		zap.Time("saved_at", snap.SavedAt),
	)
	return nil
}

// Close releases engine resources.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}
