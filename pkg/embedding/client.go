// Package embedding provides the HTTP client for the external embedding service.
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

// Dimensions is the embedding dimensionality the cache is built around.
// Any response with a different shape is rejected.
const Dimensions = 768

const defaultTimeout = 5 * time.Second

// Client calls an OpenAI-compatible POST /v1/embeddings endpoint.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	dim      int
	client   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default 5s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithDimensions overrides the expected embedding dimensionality.
func WithDimensions(dim int) Option {
	return func(c *Client) { c.dim = dim }
}

// New creates an embedding Client for the given endpoint and model.
func New(endpoint, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		dim:      Dimensions,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text. The request is aborted when ctx
// is cancelled or the client timeout elapses; a response that does not contain
// exactly one embedding of the expected dimensionality is an error.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embed: empty input")
	}

	payload, err := json.Marshal(embeddingRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, body)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if len(parsed.Data) != 1 {
		return nil, fmt.Errorf("embedding service returned %d embeddings, expected 1", len(parsed.Data))
	}
	vec := parsed.Data[0].Embedding
	if len(vec) != c.dim {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), c.dim)
	}
	return vec, nil
}
