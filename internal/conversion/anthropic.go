package conversion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultModel       = "claude-3-5-sonnet-20241022"
	DefaultBaseURL     = "https://api.anthropic.com"
	anthropicVersion   = "2023-06-01"
	defaultMaxTokens   = 2000
	defaultTemperature = 0.1
)

// Generator produces a completion for a single user prompt.
type Generator interface {
	Available() bool
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnthropicClient talks to the Messages API.
type AnthropicClient struct {
	Model       string
	MaxTokens   int
	Temperature float64

	apiKey  string
	baseURL string
	client  *http.Client
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicClient builds a client. An empty apiKey yields a client that
// reports itself unavailable.
func NewAnthropicClient(apiKey, model, baseURL string) *AnthropicClient {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &AnthropicClient{
		Model:       model,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: 2 * time.Minute},
	}
}

func (a *AnthropicClient) Available() bool {
	return a != nil && a.apiKey != ""
}

// Complete sends prompt as a single user message and returns the text of the
// first content block.
func (a *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	if !a.Available() {
		return "", ErrUnavailable
	}

	reqBody, err := json.Marshal(messagesRequest{
		Model:       a.Model,
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
		Messages:    []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %w", ErrCollaborator, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create HTTP request: %w", ErrCollaborator, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %w", ErrCollaborator, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response body: %w", ErrCollaborator, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("%w: %s - %s", ErrCollaborator, resp.Status, apiErr.Error.Message)
		}
		return "", fmt.Errorf("%w: %s - %s", ErrCollaborator, resp.Status, string(body))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: failed to unmarshal response: %w", ErrBadResponse, err)
	}
	for _, block := range parsed.Content {
		if block.Type == "" || block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}
