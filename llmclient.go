package seiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultMaxOutputTokens is used when a ModelConfig does not set
// MaxOutputTokens, mirroring llm_client.py's call_llm default of 4000.
const defaultMaxOutputTokens = 4000

// defaultTemperature mirrors the 0.3 default used throughout the original
// trajectory-summarization call sites.
const defaultTemperature = 0.3

// LLMClient is a one-shot chat-completion transport for any
// OpenAI-compatible API (OpenAI, OpenRouter, Groq, local vLLM/Ollama
// endpoints, ...). It performs no internal retry: a transient failure
// surfaces as a single error to the caller, which is expected to fall
// back to deterministic behavior rather than resubmit the request.
type LLMClient struct {
	cfg     ModelConfig
	client  *http.Client
	metrics Metrics
}

// LLMOption configures an LLMClient at construction time.
type LLMOption func(*LLMClient)

// WithLLMMetrics attaches a Metrics sink recording token usage and
// latency for every Complete call. When unset, recording is a no-op.
func WithLLMMetrics(metrics Metrics) LLMOption {
	return func(c *LLMClient) { c.metrics = metrics }
}

// NewLLMClient validates cfg and constructs a client. name, api_base, and
// api_key are required; construction fails immediately if any is empty.
func NewLLMClient(cfg ModelConfig, opts ...LLMOption) (*LLMClient, error) {
	var missing []string
	if cfg.Name == "" {
		missing = append(missing, "name")
	}
	if cfg.APIBase == "" {
		missing = append(missing, "api_base")
	}
	if cfg.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Field: "model", Message: fmt.Sprintf("missing required keys: %v", missing)}
	}
	c := &LLMClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// chatMessage is the OpenAI-format message shape sent over the wire.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends a single system+user chat-completion request and returns
// the model's text response. Temperature and max output tokens come from
// the client's ModelConfig; a zero Temperature falls back to
// defaultTemperature, matching the original call sites' 0.3 default.
func (c *LLMClient) Complete(ctx context.Context, system, user string) (string, error) {
	started := time.Now()
	temp := c.cfg.Temperature
	if temp == 0 {
		temp = defaultTemperature
	}
	maxTokens := c.cfg.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxOutputTokens
	}

	body := chatCompletionRequest{
		Model: c.cfg.Name,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temp,
		TopP:        c.cfg.TopP,
		MaxTokens:   maxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &ErrLLM{Provider: c.cfg.Name, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	url := c.cfg.APIBase + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &ErrLLM{Provider: c.cfg.Name, Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &ErrLLM{Provider: c.cfg.Name, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &ErrHTTP{Status: resp.StatusCode, Body: string(respBody)}
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ErrLLM{Provider: c.cfg.Name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(out.Choices) == 0 {
		return "", &ErrLLM{Provider: c.cfg.Name, Message: "response contained no choices"}
	}
	if c.metrics != nil {
		c.metrics.LLMCall(ctx, c.cfg.Name, out.Usage.PromptTokens, out.Usage.CompletionTokens, time.Since(started))
	}
	return out.Choices[0].Message.Content, nil
}
