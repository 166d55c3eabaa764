// Package oracle wraps the external text-understanding service: prompt
// construction, the call budget, response caching, and interpretation of the
// DROP sentinel. The transport is an OpenAI-compatible chat completion
// endpoint spoken over net/http directly.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/picnicd/picnic/internal/config"
)

// Provider is the interface to the extraction oracle. Implementations return
// the raw response text; interpretation is the adapter's job.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ChatClient is the production Provider: an OpenAI-compatible chat API.
type ChatClient struct {
	cfg  config.OracleConfig
	http *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewChatClient builds a ChatClient from oracle config.
func NewChatClient(cfg config.OracleConfig) *ChatClient {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// Complete sends one chat completion request and returns the message text.
// Transport and HTTP-status failures come back as errors, never panics.
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return "", fmt.Errorf("parsing response JSON: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("no choices in oracle response")
	}
	return chat.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
