package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	APIKey     string        `json:"api_key" yaml:"api_key"`
	Model      string        `json:"model" yaml:"model"`
	Dimensions int           `json:"dimensions" yaml:"dimensions"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}

// OpenAIProvider implements embedding against OpenAI's API or any
// compatible endpoint.
type OpenAIProvider struct {
	*BaseProvider
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}

	return &OpenAIProvider{
		BaseProvider: NewBaseProvider(BaseConfig{
			Name:       "openai-embedding",
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		}),
	}
}

type openAIEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed implements Provider.
func (p *OpenAIProvider) Embed(ctx context.Context, req *Request) (*Response, error) {
	body := openAIEmbedRequest{
		Input: req.Input,
		Model: p.Model(req.Model),
	}

	respBody, err := p.DoRequest(ctx, "POST", "/v1/embeddings", body, nil)
	if err != nil {
		return nil, err
	}

	var oaResp openAIEmbedResponse
	if err := json.Unmarshal(respBody, &oaResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	embeddings := make([]Data, len(oaResp.Data))
	for i, d := range oaResp.Data {
		embeddings[i] = Data{Index: d.Index, Embedding: d.Embedding}
	}

	return &Response{
		Provider:   p.Name(),
		Model:      oaResp.Model,
		Embeddings: embeddings,
		Usage: Usage{
			PromptTokens: oaResp.Usage.PromptTokens,
			TotalTokens:  oaResp.Usage.TotalTokens,
		},
	}, nil
}

// EmbedQuery implements Provider.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return embedOne(ctx, p, text)
}

var _ Provider = (*OpenAIProvider)(nil)

// embedOne runs a single-text request through a provider's Embed.
func embedOne(ctx context.Context, p Provider, text string) ([]float64, error) {
	resp, err := p.Embed(ctx, &Request{Input: []string{text}})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Embeddings[0].Embedding, nil
}
