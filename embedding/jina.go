package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// JinaConfig configures the Jina AI provider.
type JinaConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	APIKey  string        `json:"api_key" yaml:"api_key"`
	Model   string        `json:"model" yaml:"model"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// JinaProvider implements embedding using Jina AI's API.
type JinaProvider struct {
	*BaseProvider
}

// NewJinaProvider creates a new Jina AI embedding provider.
func NewJinaProvider(cfg JinaConfig) *JinaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.jina.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "jina-embeddings-v3"
	}

	return &JinaProvider{
		BaseProvider: NewBaseProvider(BaseConfig{
			Name:       "jina-embedding",
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: 1024,
			Timeout:    cfg.Timeout,
		}),
	}
}

type jinaEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
	Task  string   `json:"task,omitempty"`
}

type jinaEmbedResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens  int `json:"total_tokens"`
		PromptTokens int `json:"prompt_tokens"`
	} `json:"usage"`
}

// Embed implements Provider.
func (p *JinaProvider) Embed(ctx context.Context, req *Request) (*Response, error) {
	body := jinaEmbedRequest{
		Input: req.Input,
		Model: p.Model(req.Model),
		Task:  "text-matching",
	}

	respBody, err := p.DoRequest(ctx, "POST", "/v1/embeddings", body, nil)
	if err != nil {
		return nil, err
	}

	var jResp jinaEmbedResponse
	if err := json.Unmarshal(respBody, &jResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	embeddings := make([]Data, len(jResp.Data))
	for i, d := range jResp.Data {
		embeddings[i] = Data{Index: d.Index, Embedding: d.Embedding}
	}

	return &Response{
		Provider:   p.Name(),
		Model:      jResp.Model,
		Embeddings: embeddings,
		Usage: Usage{
			PromptTokens: jResp.Usage.PromptTokens,
			TotalTokens:  jResp.Usage.TotalTokens,
		},
	}, nil
}

// EmbedQuery implements Provider.
func (p *JinaProvider) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return embedOne(ctx, p, text)
}

var _ Provider = (*JinaProvider)(nil)
