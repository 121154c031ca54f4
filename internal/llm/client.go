// Package llm talks to an Ollama server. It hides transport retries from
// callers: transient failures (connection errors, 429, 5xx) are retried
// with exponential backoff, so an error returned from Complete means
// "this model is unavailable right now" and the caller should move on to
// its next candidate.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
)

// Message is one turn of model-facing conversation.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Options tunes a single completion call.
type Options struct {
	// Temperature overrides the backend default when > 0.
	Temperature float64

	// Thinking toggles extended reasoning for models that support it.
	// nil leaves the model default; callers must only set it for
	// thinking-capable models.
	Thinking *bool
}

// Thinking returns a pointer for Options.Thinking.
func Thinking(on bool) *bool { return &on }

// Client is the completion contract the rest of the system depends on.
type Client interface {
	Complete(ctx context.Context, model string, messages []Message, opts Options) (string, error)
}

// OllamaClient implements Client against the Ollama chat API.
type OllamaClient struct {
	host       string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// ClientConfig holds OllamaClient construction parameters.
type ClientConfig struct {
	Host       string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// DefaultClientConfig returns sensible defaults for a local Ollama.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:       "http://localhost:11434",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

// NewOllamaClient creates a client with custom config.
func NewOllamaClient(cfg ClientConfig) *OllamaClient {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Second
	}
	return &OllamaClient{
		host:       strings.TrimRight(cfg.Host, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// chatRequest is the Ollama /api/chat payload.
type chatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
	Think    *bool          `json:"think,omitempty"`
}

// chatResponse is the non-streaming Ollama /api/chat reply.
type chatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role     string `json:"role"`
		Content  string `json:"content"`
		Thinking string `json:"thinking,omitempty"`
	} `json:"message"`
	Done          bool   `json:"done"`
	DoneReason    string `json:"done_reason,omitempty"`
	TotalDuration int64  `json:"total_duration,omitempty"`
	EvalCount     int    `json:"eval_count,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Complete sends one chat completion and returns the assistant text.
func (c *OllamaClient) Complete(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	if model == "" {
		return "", fmt.Errorf("model name required")
	}

	reqBody := chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Think:    opts.Thinking,
	}
	if opts.Temperature > 0 {
		reqBody.Options = map[string]any{"temperature": opts.Temperature}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	timer := logging.StartTimer(logging.CategoryLLM, fmt.Sprintf("complete[%s]", model))
	defer timer.StopWithThreshold(60 * time.Second)

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			// Exponential backoff: backoff, 2*backoff, 4*backoff...
			delay := c.backoff * time.Duration(1<<uint(i-1))
			logging.LLMDebug("retry %d/%d for %s after %v: %v", i, c.maxRetries, model, delay, lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		text, retryable, err := c.doChat(ctx, jsonData, model)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			logging.Get(logging.CategoryLLM).Warn("%s: permanent failure: %v", model, err)
			return "", err
		}
	}

	logging.Get(logging.CategoryLLM).Error("%s: unavailable after %d retries: %v", model, c.maxRetries, lastErr)
	return "", fmt.Errorf("%w: %s: %v", ErrModelUnavailable, model, lastErr)
}

// doChat performs one HTTP round trip. The second return reports whether
// the failure is worth retrying.
func (c *OllamaClient) doChat(ctx context.Context, payload []byte, model string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", true, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != "" {
		return "", false, fmt.Errorf("ollama error: %s", chatResp.Error)
	}

	content := strings.TrimSpace(chatResp.Message.Content)
	if content == "" {
		return "", false, fmt.Errorf("%w: %s", ErrEmptyCompletion, model)
	}

	if chatResp.Message.Thinking != "" {
		logging.LLMDebug("%s emitted %d bytes of thinking (discarded)", model, len(chatResp.Message.Thinking))
	}
	logging.LLMDebug("%s completed: %d eval tokens, done_reason=%s", model, chatResp.EvalCount, chatResp.DoneReason)

	return content, false, nil
}

// tagsResponse is the Ollama /api/tags reply.
type tagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		ModifiedAt time.Time `json:"modified_at"`
		Size       int64     `json:"size"`
	} `json:"models"`
}

// ListModels returns the names of models available on the server.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// Host returns the configured server address.
func (c *OllamaClient) Host() string {
	return c.host
}
