// Package llm provides the concrete status client: a thin wrapper over
// an OpenAI-compatible chat-completion endpoint that turns reasoning
// text into short status lines and completion summaries. The engine
// depends only on the reasoning.StatusClient interface; this package is
// one pluggable implementation of it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
)

// maxReasoningExcerpt caps the reasoning text sent upstream per status
// call. Status lines only need the most recent thinking, and a capped
// prompt keeps token spend flat regardless of how chatty the model is.
const maxReasoningExcerpt = 2000

// maxHistoryExcerpt caps the reasoning history sent for final summaries.
const maxHistoryExcerpt = 6000

// ClientConfig configures a status client. All fields are plain values
// injected at construction so any OpenAI-compatible backend and model
// can be substituted without code changes.
type ClientConfig struct {
	// Provider is the tag stamped into event metadata, e.g. "openrouter".
	Provider string

	// Model is the chat-completion model identifier.
	Model string

	// APIKey authenticates against the upstream API.
	APIKey string

	// BaseURL overrides the default OpenAI endpoint. Required for
	// OpenRouter, GLM, and other compatible backends.
	BaseURL string

	// Temperature for status generation. Kept low — status lines should
	// be consistent, not creative.
	Temperature float32

	// MaxTokens bounds each completion. Status lines are tiny.
	MaxTokens int
}

// Client calls an OpenAI-compatible chat-completion API to generate
// status lines. It implements reasoning.StatusClient.
type Client struct {
	api         *openai.Client
	provider    string
	model       string
	temperature float32
	maxTokens   int
}

// DefaultTemperature keeps status wording stable across calls.
const DefaultTemperature = 0.3

// DefaultMaxTokens is generous for a 5–15 word line.
const DefaultMaxTokens = 60

// NewClient creates a status client for an OpenAI-compatible endpoint.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	slog.Info("LLM status client configured",
		"provider", provider, "model", cfg.Model, "base_url", cfg.BaseURL)

	return &Client{
		api:         openai.NewClientWithConfig(apiConfig),
		provider:    provider,
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Describe implements reasoning.StatusClient.
func (c *Client) Describe() (provider, model string) {
	return c.provider, c.model
}

// GenerateStatus implements reasoning.StatusClient. The caller bounds
// the call with a context deadline; a deadline hit is reported as
// KindTimeout.
func (c *Client) GenerateStatus(ctx context.Context, reasoningText string, phase reasoning.ThinkingPhase, requestID string) (string, error) {
	prompt := statusPrompt(truncateTail(reasoningText, maxReasoningExcerpt), phase)
	return c.complete(ctx, prompt, requestID)
}

// GenerateFinalSummary implements reasoning.StatusClient.
func (c *Client) GenerateFinalSummary(ctx context.Context, reasoningHistory, artifactDescription, requestID string) (string, error) {
	prompt := finalSummaryPrompt(truncateTail(reasoningHistory, maxHistoryExcerpt), artifactDescription)
	return c.complete(ctx, prompt, requestID)
}

// complete performs one chat-completion round trip: a single user-role
// message, bounded tokens, fixed low temperature. Expects the standard
// {choices:[{message:{content}}]} shape; anything else is
// INVALID_RESPONSE.
func (c *Client) complete(ctx context.Context, prompt, requestID string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
		MaxTokens:   c.maxTokens,
		Temperature: &c.temperature,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", c.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", NewStatusError(KindInvalidResponse, c.provider,
			fmt.Errorf("no choices in completion response"))
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", NewStatusError(KindInvalidResponse, c.provider,
			fmt.Errorf("empty completion content"))
	}

	slog.Debug("Status line generated",
		"request_id", requestID, "model", c.model, "chars", len(content))
	return sanitizeStatusLine(content), nil
}

// classify maps an SDK error onto the status-error taxonomy.
func (c *Client) classify(err error) *StatusError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewStatusError(KindTimeout, c.provider, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewStatusError(KindAPIError, c.provider, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewStatusError(KindAPIError, c.provider, err)
	}

	return NewStatusError(KindUnknown, c.provider, err)
}

// sanitizeStatusLine strips wrapping quotes and collapses the response
// to its first line. Models occasionally add both despite instructions.
func sanitizeStatusLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// truncateTail keeps the last max bytes of s. The most recent reasoning
// is the most relevant to the current status.
func truncateTail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}

func statusPrompt(reasoningText string, phase reasoning.ThinkingPhase) string {
	return fmt.Sprintf(
		"You write terse progress lines for a code-generation UI. "+
			"The assistant is currently in its %q phase. Based on the reasoning "+
			"excerpt below, reply with ONE present-continuous status line of 5-10 "+
			"words describing what is being worked on. No quotes, no punctuation "+
			"beyond a trailing ellipsis, no explanations.\n\nReasoning:\n%s",
		phase, reasoningText)
}

func finalSummaryPrompt(reasoningHistory, artifactDescription string) string {
	return fmt.Sprintf(
		"You write terse completion summaries for a code-generation UI. "+
			"The assistant just finished creating: %s. Based on its full reasoning "+
			"below, reply with ONE past-tense summary of 8-15 words describing what "+
			"was built. No quotes, no explanations.\n\nReasoning:\n%s",
		artifactDescription, reasoningHistory)
}
