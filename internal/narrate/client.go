package narrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spherical/deck-narrator/internal/domain"
)

const (
	defaultBaseURL   = "http://localhost:11434"
	defaultModel     = "mistral"
	defaultMaxTokens = 150
	defaultTimeout   = 60 * time.Second

	generatePath     = "/api/generate"
	maxErrorBodySize = 4 << 10
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client calls an Ollama-compatible generation endpoint. It makes exactly
// one attempt per call.
type Client struct {
	baseURL    string
	model      string
	maxTokens  int
	timeout    time.Duration
	httpClient *http.Client
}

// ClientConfig configures a Client. Zero values take defaults.
type ClientConfig struct {
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// GenerateRequest is the body sent to the generation endpoint.
type GenerateRequest struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	Stream    bool     `json:"stream"`
	MaxTokens int      `json:"max_tokens"`
	Options   *Options `json:"options,omitempty"`
}

// Options are model options understood by Ollama.
type Options struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// GenerateResponse is the non-streaming body returned by the endpoint.
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewClient creates a generation client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the model name sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt to the endpoint and returns the trimmed response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(c.buildRequest(prompt))
	if err != nil {
		return "", domain.GenerationServiceError("failed to marshal request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return "", domain.GenerationUnavailableError("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.GenerationUnavailableError(
			fmt.Sprintf("failed to reach generation service at %s; ensure it is running", c.baseURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", domain.GenerationServiceError(
			fmt.Sprintf("generation service returned %s: %s", resp.Status, strings.TrimSpace(string(bodyBytes))), nil)
	}

	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", domain.GenerationUnavailableError("generation service did not answer in time", ctx.Err())
		}
		return "", domain.GenerationServiceError("malformed response from generation service", err)
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", domain.EmptyGenerationError(fmt.Sprintf("empty response from %s", c.model))
	}
	return text, nil
}

func (c *Client) buildRequest(prompt string) *GenerateRequest {
	return &GenerateRequest{
		Model:     c.model,
		Prompt:    prompt,
		Stream:    false,
		MaxTokens: c.maxTokens,
		Options:   &Options{NumPredict: c.maxTokens},
	}
}
