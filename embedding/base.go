package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentmesh/agentmesh/types"
)

// BaseProvider carries the HTTP plumbing shared by providers.
type BaseProvider struct {
	name    string
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	dims    int
}

// BaseConfig holds the common provider configuration.
type BaseConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// NewBaseProvider creates the shared provider base.
func NewBaseProvider(cfg BaseConfig) *BaseProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &BaseProvider{
		name:    cfg.Name,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		dims:    cfg.Dimensions,
	}
}

// Name returns the provider name.
func (p *BaseProvider) Name() string { return p.name }

// Dimensions returns the default embedding dimensionality.
func (p *BaseProvider) Dimensions() int { return p.dims }

// Model returns the request model or the configured default.
func (p *BaseProvider) Model(reqModel string) string {
	if reqModel != "" {
		return reqModel
	}
	return p.model
}

// DoRequest performs an HTTP request with common error handling.
func (p *BaseProvider) DoRequest(ctx context.Context, method, endpoint string, body any, headers map[string]string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingUnavailable, "embedding request failed").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, types.Errorf(types.ErrEmbeddingUnavailable, "%s returned HTTP %d: %s",
			p.name, resp.StatusCode, truncate(string(respBody), 200)).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
