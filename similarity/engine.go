// Package similarity scores how close two peer responses are, in [0,1].
//
// The text-overlap method is always available and has no external
// dependency. The embedding method delegates to an embedding provider
// and silently falls back to text-overlap on any failure: a provider
// outage must never fail an orchestration round. Caller-supplied custom
// functions are the one exception; their errors propagate.
package similarity

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentmesh/agentmesh/embedding"
	"github.com/agentmesh/agentmesh/types"
)

// Method identifies a similarity method.
type Method string

const (
	// MethodTextOverlap blends token Jaccard and term-frequency cosine.
	MethodTextOverlap Method = "text-overlap"
	// MethodEmbedding compares embedding vectors from a provider.
	MethodEmbedding Method = "embedding"
	// MethodCustom delegates to a caller-supplied function.
	MethodCustom Method = "custom"
)

// Weights in the text-overlap blend.
const (
	jaccardWeight = 0.4
	cosineWeight  = 0.6
)

// CustomFunc is a caller-supplied similarity function over the
// extracted texts. Errors from it are propagated, not recovered.
type CustomFunc func(a, b string) (float64, error)

// Engine computes response similarity with a configured method.
type Engine struct {
	method   Method
	provider embedding.Provider
	custom   CustomFunc
	logger   *zap.Logger
}

// NewEngine creates a similarity engine. provider may be nil unless
// method is MethodEmbedding (and even then a nil provider just means
// every score falls back to text-overlap). custom must be non-nil when
// method is MethodCustom.
func NewEngine(method Method, provider embedding.Provider, custom CustomFunc, logger *zap.Logger) *Engine {
	if method == "" {
		method = MethodTextOverlap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		method:   method,
		provider: provider,
		custom:   custom,
		logger:   logger.With(zap.String("component", "similarity")),
	}
}

// Method returns the configured method.
func (e *Engine) Method() Method { return e.method }

// Score returns the similarity of two response values in [0,1].
func (e *Engine) Score(ctx context.Context, a, b types.Value) (float64, error) {
	textA := normalizeText(extractText(a))
	textB := normalizeText(extractText(b))

	switch e.method {
	case MethodTextOverlap:
		return textOverlap(textA, textB), nil
	case MethodEmbedding:
		return e.embeddingScore(ctx, textA, textB), nil
	case MethodCustom:
		if e.custom == nil {
			return 0, types.NewError(types.ErrSimilarityFunction, "custom method configured without a function")
		}
		score, err := e.custom(textA, textB)
		if err != nil {
			return 0, types.NewError(types.ErrSimilarityFunction, "custom similarity function failed").WithCause(err)
		}
		return clamp01(score), nil
	default:
		return textOverlap(textA, textB), nil
	}
}

// Exact scores 1.0 when two values' normalized texts are identical and
// 0 otherwise. It backs configurations with semantic similarity turned
// off, where only literal agreement clusters.
type Exact struct{}

// Score implements the scorer contract over normalized text equality.
func (Exact) Score(_ context.Context, a, b types.Value) (float64, error) {
	textA := normalizeText(extractText(a))
	textB := normalizeText(extractText(b))
	if textA == textB && textA != "" {
		return 1.0, nil
	}
	return 0, nil
}

// extractText returns the textual view of a response value; nil values
// extract to the empty string.
func extractText(v types.Value) string {
	if v == nil {
		return ""
	}
	return v.Text()
}

// textOverlap blends token-set Jaccard with term-frequency cosine over
// already-normalized strings.
func textOverlap(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1.0
	}

	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	j := jaccard(tokensA, tokensB)
	c := cosineFreq(termFrequencies(tokensA), termFrequencies(tokensB))
	return jaccardWeight*j + cosineWeight*c
}

// embeddingScore embeds both texts concurrently and compares vectors.
// Any failure falls back to text-overlap.
func (e *Engine) embeddingScore(ctx context.Context, a, b string) float64 {
	if e.provider == nil {
		return textOverlap(a, b)
	}
	if a == b {
		if a == "" {
			return 0
		}
		return 1.0
	}

	var vecA, vecB []float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vecA, err = e.provider.EmbedQuery(gctx, a)
		return err
	})
	g.Go(func() error {
		var err error
		vecB, err = e.provider.EmbedQuery(gctx, b)
		return err
	})

	if err := g.Wait(); err != nil {
		e.logger.Warn("embedding provider failed, falling back to text overlap",
			zap.String("provider", e.provider.Name()),
			zap.Error(err),
		)
		return textOverlap(a, b)
	}

	return cosineVec(vecA, vecB)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
