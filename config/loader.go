package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentmesh/agentmesh/consensus"
	"github.com/agentmesh/agentmesh/selection"
	"github.com/agentmesh/agentmesh/similarity"
	"github.com/agentmesh/agentmesh/types"
)

// Config is the full engine configuration.
type Config struct {
	// Orchestration controls peer selection and dispatch.
	Orchestration OrchestrationConfig `yaml:"orchestration" env:"ORCHESTRATION"`

	// Consensus controls response aggregation.
	Consensus ConsensusConfig `yaml:"consensus" env:"CONSENSUS"`

	// Similarity controls how response agreement is measured.
	Similarity SimilarityConfig `yaml:"similarity" env:"SIMILARITY"`

	// LoadBalancing controls load-aware selection weights.
	LoadBalancing LoadBalancingConfig `yaml:"load_balancing" env:"LOAD_BALANCING"`

	// CircuitBreaker controls per-peer failure isolation.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" env:"CIRCUIT_BREAKER"`

	// Embedding configures the optional embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Redis configures the optional shared state store.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log configures logging output.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// OrchestrationConfig controls peer selection and dispatch.
type OrchestrationConfig struct {
	// Selection strategy: all, round-robin, weighted, top-n.
	SelectionStrategy string `yaml:"selection_strategy" env:"SELECTION_STRATEGY"`
	// Number of peers to select (for round-robin and top-n).
	AgentCount int `yaml:"agent_count" env:"AGENT_COUNT"`
	// Global timeout for a dispatch round.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Whether to aggregate over partial results on timeout.
	AllowPartialResults bool `yaml:"allow_partial_results" env:"ALLOW_PARTIAL_RESULTS"`
	// Outbound request rate limit; zero disables limiting.
	RatePerSecond float64 `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	RateBurst     int     `yaml:"rate_burst" env:"RATE_BURST"`
}

// ConsensusConfig controls response aggregation.
type ConsensusConfig struct {
	// Aggregation strategy: first-response, best-score, majority-vote,
	// weighted-vote, consensus-threshold, ensemble, synthesized-consensus.
	AggregationStrategy string `yaml:"aggregation_strategy" env:"AGGREGATION_STRATEGY"`
	// Fraction of successful responses the winning cluster must hold.
	ConsensusThreshold float64 `yaml:"consensus_threshold" env:"CONSENSUS_THRESHOLD"`
	// Minimum successful responses for consensus to be achievable.
	MinAgents int `yaml:"min_agents" env:"MIN_AGENTS"`
}

// SimilarityConfig controls how response agreement is measured.
type SimilarityConfig struct {
	// Enabled turns semantic comparison on. When off, responses only
	// cluster together when their normalized texts are identical.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Method: text-overlap, embedding, custom.
	Method string `yaml:"method" env:"METHOD"`
	// Score above which two responses belong to the same cluster.
	Threshold float64 `yaml:"threshold" env:"THRESHOLD"`
}

// LoadBalancingConfig controls load-aware selection.
type LoadBalancingConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// PreferLessLoaded makes weighted selection favor peers with fewer
	// in-flight requests; when off the load term is ignored.
	PreferLessLoaded bool `yaml:"prefer_less_loaded" env:"PREFER_LESS_LOADED"`
	// Relative weights for the weighted selection strategy.
	ScoreWeight      float64 `yaml:"score_weight" env:"SCORE_WEIGHT"`
	LoadWeight       float64 `yaml:"load_weight" env:"LOAD_WEIGHT"`
	ReputationWeight float64 `yaml:"reputation_weight" env:"REPUTATION_WEIGHT"`
}

// CircuitBreakerConfig controls per-peer failure isolation.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Consecutive failures that open the breaker.
	FailureThreshold int `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	// How long an open breaker excludes a peer.
	Cooldown time.Duration `yaml:"cooldown" env:"COOLDOWN"`
}

// EmbeddingConfig configures the optional embedding provider.
type EmbeddingConfig struct {
	// Provider: openai, jina, or empty to disable.
	Provider string `yaml:"provider" env:"PROVIDER"`
	APIKey   string `yaml:"api_key" env:"API_KEY"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL"`
	Model    string `yaml:"model" env:"MODEL"`
}

// RedisConfig configures the optional shared state store.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	// Key prefix so multiple engines can share one instance.
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console.
	Format string `yaml:"format" env:"FORMAT"`
}

// Loader loads configuration with builder-style options.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a loader with the default env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "AGENTMESH"}
}

// WithConfigPath sets the YAML file path. A missing file is not an
// error; defaults and env vars still apply.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load resolves the configuration. Precedence: defaults, then YAML
// file, then environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, err
		}
	}

	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return types.Errorf(types.ErrInvalidConfig, "read config file: %v", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return types.Errorf(types.ErrInvalidConfig, "parse config file: %v", err)
	}

	return nil
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return types.Errorf(types.ErrInvalidConfig, "env %s: %v", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	}

	return nil
}

// MustLoad loads the config from path and panics on error.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}
	return cfg
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	var errs []string

	switch c.Orchestration.SelectionStrategy {
	case string(selection.StrategyAll), string(selection.StrategyRoundRobin),
		string(selection.StrategyWeighted), string(selection.StrategyTopN):
	default:
		errs = append(errs, fmt.Sprintf("unknown selection strategy %q", c.Orchestration.SelectionStrategy))
	}

	switch c.Consensus.AggregationStrategy {
	case string(consensus.StrategyFirstResponse), string(consensus.StrategyBestScore),
		string(consensus.StrategyMajorityVote), string(consensus.StrategyWeightedVote),
		string(consensus.StrategyConsensusThreshold), string(consensus.StrategyEnsemble),
		string(consensus.StrategySynthesized):
	default:
		errs = append(errs, fmt.Sprintf("unknown aggregation strategy %q", c.Consensus.AggregationStrategy))
	}

	switch c.Similarity.Method {
	case string(similarity.MethodTextOverlap), string(similarity.MethodEmbedding),
		string(similarity.MethodCustom):
	default:
		errs = append(errs, fmt.Sprintf("unknown similarity method %q", c.Similarity.Method))
	}

	if c.Orchestration.AgentCount <= 0 {
		errs = append(errs, "agent_count must be positive")
	}
	if c.Orchestration.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if c.Consensus.ConsensusThreshold <= 0 || c.Consensus.ConsensusThreshold > 1 {
		errs = append(errs, "consensus_threshold must be in (0, 1]")
	}
	if c.Consensus.MinAgents < 1 {
		errs = append(errs, "min_agents must be at least 1")
	}
	if c.Similarity.Threshold < 0 || c.Similarity.Threshold > 1 {
		errs = append(errs, "similarity threshold must be in [0, 1]")
	}
	if c.CircuitBreaker.Enabled && c.CircuitBreaker.FailureThreshold <= 0 {
		errs = append(errs, "circuit breaker failure_threshold must be positive")
	}

	if len(errs) > 0 {
		return types.Errorf(types.ErrInvalidConfig, "invalid config: %s", strings.Join(errs, "; "))
	}

	return nil
}
