// Package embedding provides a unified interface over hosted embedding
// providers. The similarity engine uses it for embedding-based scoring
// and falls back to lexical overlap whenever a provider call fails, so
// nothing in this package is allowed to take down an orchestration
// round.
package embedding

import "context"

// Request is a batch embedding request.
type Request struct {
	// Input is the list of texts to embed.
	Input []string `json:"input"`

	// Model overrides the provider's default model when non-empty.
	Model string `json:"model,omitempty"`
}

// Data is a single embedding result.
type Data struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// Usage reports token consumption for a request.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the result of an embedding request.
type Response struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Embeddings []Data `json:"embeddings"`
	Usage      Usage  `json:"usage"`
}

// Provider is the unified embedding provider interface.
type Provider interface {
	// Embed generates embeddings for the given inputs.
	Embed(ctx context.Context, req *Request) (*Response, error)

	// EmbedQuery is a convenience for embedding a single text.
	EmbedQuery(ctx context.Context, text string) ([]float64, error)

	// Name returns the provider name.
	Name() string

	// Dimensions returns the default embedding dimensionality.
	Dimensions() int
}
