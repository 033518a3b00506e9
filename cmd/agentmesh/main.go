package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agentmesh/agentmesh/config"
	"github.com/agentmesh/agentmesh/consensus"
	"github.com/agentmesh/agentmesh/dispatch"
	"github.com/agentmesh/agentmesh/orchestrator"
	"github.com/agentmesh/agentmesh/selection"
	"github.com/agentmesh/agentmesh/state"
	"github.com/agentmesh/agentmesh/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "demo":
		runDemo(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runDemo(args []string) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	peerCount := fs.Int("peers", 5, "Number of simulated peers")
	question := fs.String("question", "what is 2+2", "Question to dispatch")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting agentmesh demo",
		zap.String("version", Version),
		zap.Int("peers", *peerCount),
	)

	var store state.Store
	if cfg.Redis.Enabled {
		rs, err := state.NewRedisStore(state.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			logger.Warn("redis unavailable, state persistence disabled", zap.Error(err))
		} else {
			store = rs
		}
	}

	engine, err := orchestrator.NewEngine(orchestrator.Options{
		Transport:  newSimTransport(*peerCount),
		Config:     cfg,
		Store:      store,
		Registerer: prometheus.DefaultRegisterer,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}
	defer engine.Close()

	ctx := context.Background()
	if err := engine.RestoreState(ctx); err != nil {
		logger.Warn("state restore failed", zap.Error(err))
	}

	for i := 0; i < *peerCount; i++ {
		engine.RegisterPeer(types.PeerInfo{
			ID: fmt.Sprintf("sim-peer-%d", i),
			Capabilities: []types.Capability{
				{Type: "arithmetic", Name: "basic"},
			},
			Reputation: 0.4 + 0.6*rand.Float64(),
		})
	}

	result, err := engine.Orchestrate(ctx, orchestrator.Request{
		Query: types.CapabilityQuery{
			Required: []types.CapabilityRef{{Type: "arithmetic"}},
		},
		Payload:             []byte(*question),
		SelectionStrategy:   selection.Strategy(cfg.Orchestration.SelectionStrategy),
		AggregationStrategy: consensus.Strategy(cfg.Consensus.AggregationStrategy),
	})
	if err != nil {
		logger.Fatal("orchestration failed", zap.Error(err))
	}

	fmt.Printf("Answer:      %s\n", result.Text)
	fmt.Printf("Achieved:    %v\n", result.Consensus.Achieved)
	fmt.Printf("Confidence:  %.2f\n", result.Consensus.Confidence)
	fmt.Printf("Agreement:   %d of %d successful (%d asked)\n",
		result.Consensus.Agreement,
		result.Metrics.SuccessfulAgents,
		result.Metrics.TotalAgents,
	)
	fmt.Printf("Round time:  %s\n", result.Metrics.TotalTime)

	if err := engine.SaveState(ctx); err != nil {
		logger.Warn("state save failed", zap.Error(err))
	}
}

// simTransport simulates peers answering an arithmetic question. Most
// peers agree on the right answer; a minority dissents or fails so the
// demo exercises clustering and failure handling.
type simTransport struct {
	peerCount int
}

func newSimTransport(peerCount int) *simTransport {
	return &simTransport{peerCount: peerCount}
}

func (t *simTransport) Send(ctx context.Context, peerID string, req *dispatch.Request) (types.Value, error) {
	delay := time.Duration(10+rand.Intn(90)) * time.Millisecond
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	switch rand.Intn(10) {
	case 0:
		return nil, fmt.Errorf("simulated peer failure")
	case 1:
		return types.TextValue("the answer is 5"), nil
	default:
		return types.TextValue("the answer is 4"), nil
	}
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddCaller())
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func printVersion() {
	fmt.Printf("agentmesh %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`agentmesh - multi-agent orchestration engine

Usage:
  agentmesh <command> [options]

Commands:
  demo      Run one orchestration round against simulated peers
  version   Show version information
  help      Show this help message

Options for 'demo':
  --config <path>     Path to configuration file (YAML)
  --peers <n>         Number of simulated peers (default 5)
  --question <text>   Question to dispatch`)
}
