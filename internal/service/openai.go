package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"perfbot/internal/config"
	"perfbot/internal/logger"
)

// ErrAIDisabled is returned when no API key is configured
var ErrAIDisabled = errors.New("OpenAI API is not enabled (missing API key)")

// OpenAIClient handles OpenAI-compatible API interactions
type OpenAIClient struct {
	config     *config.OpenAIConfig
	httpClient *http.Client
	extraBody  map[string]any
	log        *logger.Logger
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(cfg *config.OpenAIConfig, log *logger.Logger) *OpenAIClient {
	c := &OpenAIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		log: log.With("component", "OpenAIClient"),
	}

	if cfg.ChatExtraBody != "" {
		var extraBody map[string]any
		if err := json.Unmarshal([]byte(cfg.ChatExtraBody), &extraBody); err != nil {
			c.log.Warn("Failed to parse OPENAI_CHAT_EXTRA_BODY, ignoring", "error", err)
		} else {
			c.extraBody = extraBody
		}
	}

	return c
}

// IsEnabled returns whether the client is configured and ready
func (c *OpenAIClient) IsEnabled() bool {
	return c != nil && c.config != nil && c.config.Enabled
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Model            string          `json:"model"`
	Messages         []ChatMessage   `json:"messages"`
	Temperature      float64         `json:"temperature,omitempty"`
	TopP             float64         `json:"top_p,omitempty"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	PresencePenalty  float64         `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64         `json:"frequency_penalty,omitempty"`
	ResponseFormat   *ResponseFormat `json:"response_format,omitempty"`
	ExtraBody        map[string]any  `json:"extra_body,omitempty"`
}

// ChatMessage represents a single message in the conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat specifies the format of the response
type ResponseFormat struct {
	Type string `json:"type"` // "json_object" or "text"
}

// ChatCompletionResponse represents the API response
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// FirstContent returns the trimmed content of the first choice
func (r *ChatCompletionResponse) FirstContent() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}
	content := strings.TrimSpace(r.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("empty completion content")
	}
	return content, nil
}

// ChatCompletion performs a chat completion request
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if !c.IsEnabled() {
		return nil, ErrAIDisabled
	}

	// Use configured model if not specified
	if req.Model == "" {
		req.Model = c.config.ChatModel
	}

	// Apply default parameters from config
	if req.Temperature == 0 && c.config.ChatTemperature > 0 {
		req.Temperature = c.config.ChatTemperature
	}
	if req.TopP == 0 && c.config.ChatTopP > 0 {
		req.TopP = c.config.ChatTopP
	}
	if req.MaxTokens == 0 && c.config.ChatMaxTokens > 0 {
		req.MaxTokens = c.config.ChatMaxTokens
	}
	if req.ExtraBody == nil && c.extraBody != nil {
		req.ExtraBody = c.extraBody
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.config.APIBase)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.APIKey))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	c.log.Debug("Chat completion finished",
		"model", req.Model,
		"messages", len(req.Messages),
		"total_tokens", result.Usage.TotalTokens,
		"took_ms", time.Since(start).Milliseconds(),
	)

	return &result, nil
}

// ProviderStatus is a diagnostic snapshot of the client configuration
type ProviderStatus struct {
	Enabled      bool     `json:"enabled"`
	APIBase      string   `json:"api_base"`
	ChatModel    string   `json:"chat_model"`
	APIKeySet    bool     `json:"api_key_set"`
	APIKeyLength int      `json:"api_key_length"`
	APIKeyPrefix string   `json:"api_key_prefix,omitempty"`
	LLMTest      *LLMTest `json:"llm_test,omitempty"`
}

// LLMTest is the outcome of a live test call
type LLMTest struct {
	APICall  bool   `json:"api_call"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	TookMs   int64  `json:"took_ms"`
}

// Status reports configuration with the key masked. When live is set a
// minimal completion is attempted.
func (c *OpenAIClient) Status(ctx context.Context, live bool) ProviderStatus {
	st := ProviderStatus{
		Enabled:      c.IsEnabled(),
		APIBase:      c.config.APIBase,
		ChatModel:    c.config.ChatModel,
		APIKeySet:    c.config.APIKey != "",
		APIKeyLength: len(c.config.APIKey),
	}
	if len(c.config.APIKey) > 8 {
		st.APIKeyPrefix = c.config.APIKey[:4] + "..."
	}
	if !live {
		return st
	}

	start := time.Now()
	p := &LLMTest{}
	resp, err := c.ChatCompletion(ctx, ChatCompletionRequest{
		Messages:  []ChatMessage{{Role: "user", Content: "Reply with 'LLM test successful!'"}},
		MaxTokens: 20,
	})
	if err == nil {
		p.Response, err = resp.FirstContent()
	}
	if err != nil {
		p.Error = err.Error()
	} else {
		p.APICall = true
	}
	p.TookMs = time.Since(start).Milliseconds()
	st.LLMTest = p
	return st
}

// truncate shortens s to at most maxLen runes
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
