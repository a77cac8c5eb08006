package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BaSui01/agentflow/errs"
	"go.uber.org/zap"
)

// errTransient marks a completeOnce failure as worth retrying. The
// retryer's RetryableErrors filter matches on this sentinel via
// errors.Is, not on errs.Error.Retryable — those are two independent
// bookkeeping mechanisms that happen to agree here.
var errTransient = errors.New("llmgateway: transient upstream failure")

// chatRequest and chatResponse mirror the subset of llm.ChatRequest /
// llm.ChatResponse this gateway actually needs — a single user message in,
// a single completed choice out. The fuller multi-provider router shape
// belongs to the chat-completion surface this orchestrator doesn't expose.
type chatRequest struct {
	Model    string            `json:"model"`
	Messages []chatMessage     `json:"messages"`
	Metadata map[string]string `json:"metadata,omitempty"`
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

// HTTPClient calls an OpenAI-compatible chat-completions endpoint over
// HTTP. A transient failure (network error, 5xx, timeout) is retried once
// via Retryer; a fatal one (4xx other than 429) is returned as-is.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	retryer    Retryer
	logger     *zap.Logger
}

// NewHTTPClient builds an HTTPClient. timeout bounds each individual HTTP
// call; the retryer governs whether a failed call is retried at all.
func NewHTTPClient(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := &RetryPolicy{
		MaxRetries:      1,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		RetryableErrors: []error{errTransient},
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		retryer:    NewBackoffRetryer(policy, logger),
		logger:     logger.With(zap.String("component", "llmgateway")),
	}
}

// Complete implements Client.
func (c *HTTPClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	result, err := c.retryer.DoWithResult(ctx, func() (any, error) {
		return c.completeOnce(ctx, prompt, opts)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *HTTPClient) completeOnce(ctx context.Context, prompt string, opts Options) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Metadata: map[string]string{
			"enable_sequential_thinking": boolString(opts.EnableSequentialThinking),
			"use_tool_search":            boolString(opts.UseToolSearch),
		},
	})
	if err != nil {
		return "", errs.New(errs.ErrLLMFatal, "marshal completion request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errs.New(errs.ErrLLMFatal, "build completion request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTransient, errs.New(errs.ErrLLMTransient, "completion request failed").WithCause(err).WithRetryable(true))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTransient, errs.New(errs.ErrLLMTransient, "read completion response").WithCause(err).WithRetryable(true))
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: %w", errTransient, errs.New(errs.ErrLLMTransient, fmt.Sprintf("upstream status %d", resp.StatusCode)).
			WithCause(fmt.Errorf("%s", payload)).WithRetryable(true))
	}
	if resp.StatusCode >= 400 {
		return "", errs.New(errs.ErrLLMFatal, fmt.Sprintf("upstream status %d", resp.StatusCode)).
			WithCause(fmt.Errorf("%s", payload)).WithHTTPStatus(resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", errs.New(errs.ErrLLMFatal, "unmarshal completion response").WithCause(err)
	}
	if len(parsed.Choices) == 0 {
		return "", errs.New(errs.ErrLLMFatal, "completion response had no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
