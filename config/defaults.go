package config

import (
	"time"

	"github.com/agentmesh/agentmesh/consensus"
	"github.com/agentmesh/agentmesh/selection"
	"github.com/agentmesh/agentmesh/similarity"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Orchestration:  DefaultOrchestrationConfig(),
		Consensus:      DefaultConsensusConfig(),
		Similarity:     DefaultSimilarityConfig(),
		LoadBalancing:  DefaultLoadBalancingConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Embedding:      EmbeddingConfig{},
		Redis:          DefaultRedisConfig(),
		Log:            DefaultLogConfig(),
	}
}

// DefaultOrchestrationConfig returns the default orchestration settings.
func DefaultOrchestrationConfig() OrchestrationConfig {
	return OrchestrationConfig{
		SelectionStrategy:   string(selection.StrategyTopN),
		AgentCount:          selection.DefaultAgentCount,
		Timeout:             30 * time.Second,
		AllowPartialResults: true,
	}
}

// DefaultConsensusConfig returns the default consensus settings.
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		AggregationStrategy: string(consensus.StrategyMajorityVote),
		ConsensusThreshold:  0.66,
		MinAgents:           1,
	}
}

// DefaultSimilarityConfig returns the default similarity settings.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		Enabled:   true,
		Method:    string(similarity.MethodTextOverlap),
		Threshold: 0.8,
	}
}

// DefaultLoadBalancingConfig returns the default load balancing settings.
func DefaultLoadBalancingConfig() LoadBalancingConfig {
	w := selection.DefaultWeights()
	return LoadBalancingConfig{
		Enabled:          true,
		PreferLessLoaded: true,
		ScoreWeight:      w.Match,
		LoadWeight:       w.Load,
		ReputationWeight: w.Reputation,
	}
}

// DefaultCircuitBreakerConfig returns the default circuit breaker settings.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// DefaultRedisConfig returns the default Redis settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:   false,
		Addr:      "localhost:6379",
		DB:        0,
		KeyPrefix: "agentmesh",
	}
}

// DefaultLogConfig returns the default log settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}
