package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIConfig holds OpenAI embedding client configuration.
type OpenAIConfig struct {
	// APIKey authenticates against the OpenAI API.
	APIKey string

	// Model is the embedding model (default: text-embedding-3-small).
	Model string

	// BaseURL overrides the API endpoint, e.g. for compatible proxies
	// (default: https://api.openai.com/v1).
	BaseURL string

	// Dimension is the vector dimension (default: 1536 for
	// text-embedding-3-small).
	Dimension int

	// Timeout is the per-request timeout (default: 15s).
	Timeout time.Duration

	// Breaker tunes the circuit breaker.
	Breaker BreakerConfig
}

// OpenAIClient generates embeddings via the OpenAI embeddings endpoint.
type OpenAIClient struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	timeout   time.Duration
	client    *http.Client
	breaker   *breaker
}

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAIClient creates an OpenAI embedding client with defaults applied.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &OpenAIClient{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		baseURL:   cfg.BaseURL,
		dimension: cfg.Dimension,
		timeout:   cfg.Timeout,
		client:    &http.Client{Timeout: cfg.Timeout},
		breaker:   newBreaker("openai-embeddings", cfg.Breaker),
	}
}

// Embed generates an embedding for text via POST /embeddings.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	return c.breaker.execute(ctx, func() ([]float32, error) {
		return c.embed(ctx, text)
	})
}

func (c *OpenAIClient) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(openAIEmbedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai: status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("openai: failed to decode response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai: empty embedding vector")
	}
	return parsed.Data[0].Embedding, nil
}

// Dimension returns the configured vector dimension.
func (c *OpenAIClient) Dimension() int { return c.dimension }

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

var _ Provider = (*OpenAIClient)(nil)
