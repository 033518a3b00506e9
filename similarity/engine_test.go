package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/agentmesh/agentmesh/embedding"
	"github.com/agentmesh/agentmesh/types"
)

func score(t *testing.T, e *Engine, a, b string) float64 {
	t.Helper()
	s, err := e.Score(context.Background(), types.TextValue(a), types.TextValue(b))
	require.NoError(t, err)
	return s
}

func TestTextOverlap_IdenticalIsOne(t *testing.T) {
	e := NewEngine(MethodTextOverlap, nil, nil, nil)

	assert.Equal(t, 1.0, score(t, e, "the answer is 4", "the answer is 4"))
	// Normalization applies before the identity shortcut.
	assert.Equal(t, 1.0, score(t, e, "The  Answer\tis 4", "the answer is 4"))
}

func TestTextOverlap_EmptyIsZero(t *testing.T) {
	e := NewEngine(MethodTextOverlap, nil, nil, nil)

	assert.Equal(t, 0.0, score(t, e, "", ""))
	assert.Equal(t, 0.0, score(t, e, "something", ""))
	assert.Equal(t, 0.0, score(t, e, "", "   "))
}

func TestTextOverlap_DisjointIsZero(t *testing.T) {
	e := NewEngine(MethodTextOverlap, nil, nil, nil)
	assert.Equal(t, 0.0, score(t, e, "alpha beta", "gamma delta"))
}

func TestTextOverlap_BlendFormula(t *testing.T) {
	e := NewEngine(MethodTextOverlap, nil, nil, nil)

	// "a b" vs "a c": Jaccard = 1/3, tf cosine = 1/2.
	got := score(t, e, "a b", "a c")
	assert.InDelta(t, 0.4*(1.0/3.0)+0.6*0.5, got, 1e-9)
}

func TestScore_StructuredValuesUseTextField(t *testing.T) {
	e := NewEngine(MethodTextOverlap, nil, nil, nil)

	a := types.StructuredValue{"text": "the answer is 4", "latency": 12}
	b := types.TextValue("the answer is 4")

	s, err := e.Score(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)
}

type stubProvider struct {
	vectors map[string][]float64
	err     error
}

func (s *stubProvider) Embed(ctx context.Context, req *embedding.Request) (*embedding.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	data := make([]embedding.Data, len(req.Input))
	for i, in := range req.Input {
		data[i] = embedding.Data{Index: i, Embedding: s.vectors[in]}
	}
	return &embedding.Response{Provider: "stub", Embeddings: data}, nil
}

func (s *stubProvider) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors[text], nil
}

func (s *stubProvider) Name() string    { return "stub" }
func (s *stubProvider) Dimensions() int { return 3 }

func TestEmbedding_CosineOfProviderVectors(t *testing.T) {
	provider := &stubProvider{vectors: map[string][]float64{
		"north": {0, 1, 0},
		"east":  {1, 0, 0},
		"close": {0, 0.9, 0.1},
	}}
	e := NewEngine(MethodEmbedding, provider, nil, nil)

	assert.InDelta(t, 0.0, score(t, e, "north", "east"), 1e-9)
	assert.Greater(t, score(t, e, "north", "close"), 0.9)
}

func TestEmbedding_FailureFallsBackToTextOverlap(t *testing.T) {
	provider := &stubProvider{err: errors.New("provider down")}
	e := NewEngine(MethodEmbedding, provider, nil, nil)

	// Identical strings still score 1.0 through the fallback.
	assert.Equal(t, 1.0, score(t, e, "same text", "same text"))
	assert.Equal(t, 0.0, score(t, e, "alpha", "omega"))
}

func TestEmbedding_NilProviderFallsBack(t *testing.T) {
	e := NewEngine(MethodEmbedding, nil, nil, nil)
	assert.Equal(t, 1.0, score(t, e, "x y z", "x y z"))
}

func TestCustom_ErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	e := NewEngine(MethodCustom, nil, func(a, b string) (float64, error) {
		return 0, boom
	}, nil)

	_, err := e.Score(context.Background(), types.TextValue("a"), types.TextValue("b"))
	require.Error(t, err)
	assert.Equal(t, types.ErrSimilarityFunction, types.GetErrorCode(err))
	assert.ErrorIs(t, err, boom)
}

func TestCustom_ScoreClamped(t *testing.T) {
	e := NewEngine(MethodCustom, nil, func(a, b string) (float64, error) {
		return 3.5, nil
	}, nil)

	s, err := e.Score(context.Background(), types.TextValue("a"), types.TextValue("b"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)
}

func TestCustom_MissingFunctionErrors(t *testing.T) {
	e := NewEngine(MethodCustom, nil, nil, nil)
	_, err := e.Score(context.Background(), types.TextValue("a"), types.TextValue("b"))
	assert.Equal(t, types.ErrSimilarityFunction, types.GetErrorCode(err))
}

// Properties: similarity is symmetric, bounded, and 1.0 on non-empty
// identity for the text-overlap method.
func TestTextOverlap_Properties(t *testing.T) {
	e := NewEngine(MethodTextOverlap, nil, nil, nil)

	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(rapid.SampledFrom([]string{
			"alpha", "beta", "gamma", "delta", "4", "5", "answer",
		}), 0, 8)

		a := joinWords(words.Draw(t, "a"))
		b := joinWords(words.Draw(t, "b"))

		ctx := context.Background()
		sAB, err := e.Score(ctx, types.TextValue(a), types.TextValue(b))
		if err != nil {
			t.Fatalf("score failed: %v", err)
		}
		sBA, err := e.Score(ctx, types.TextValue(b), types.TextValue(a))
		if err != nil {
			t.Fatalf("score failed: %v", err)
		}

		if sAB != sBA {
			t.Fatalf("not symmetric: %v vs %v", sAB, sBA)
		}
		if sAB < 0 || sAB > 1 {
			t.Fatalf("out of range: %v", sAB)
		}
		sAA, _ := e.Score(ctx, types.TextValue(a), types.TextValue(a))
		if a != "" && sAA != 1.0 {
			t.Fatalf("identity must be 1.0 for %q", a)
		}
	})
}

func joinWords(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}

func TestExact_OnlyIdenticalTextMatches(t *testing.T) {
	ctx := context.Background()
	ex := Exact{}

	s, err := ex.Score(ctx, types.TextValue("The  Answer is 4"), types.TextValue("the answer is 4"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, s, "normalization applies before comparison")

	// High fuzzy overlap still scores zero under exact comparison.
	s, err = ex.Score(ctx, types.TextValue("the answer is 4"), types.TextValue("the answer is 5"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	s, err = ex.Score(ctx, types.TextValue(""), types.TextValue(""))
	require.NoError(t, err)
	assert.Equal(t, 0.0, s, "empty texts never match")
}
