package llm

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

	"github.com/scrypster/keepsake/internal/tokens"
	"github.com/scrypster/keepsake/pkg/types"
)

// OpenAIConfig holds configuration for the OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string        // e.g. https://api.openai.com
	Timeout time.Duration // default: 60s
}

// OpenAIClient implements ChatClient against any /v1/chat/completions
// compatible endpoint.
type OpenAIClient struct {
	cfg     OpenAIConfig
	client  *http.Client
	breaker *Breaker
}

// NewOpenAIClient creates a client with the given configuration.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: NewBreaker(BreakerConfig{}),
	}
}

// chatRequest is the request body for POST /v1/chat/completions.
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

// chatResponse is the response body from POST /v1/chat/completions.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat sends a chat completion request through the circuit breaker.
func (c *OpenAIClient) Chat(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.breaker.Call(ctx, func() (*Response, error) {
		return c.chat(ctx, req)
	})
	if err != nil {
		var le *Error
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	return resp, nil
}

func (c *OpenAIClient) chat(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    make([]chatMessage, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	estimated := 0
	for i, m := range req.Messages {
		body.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
		estimated += tokens.Estimate(m.Content)
	}
	estimated += len(req.Messages) * 4

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, string(respBody))}
	}

	var respData chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, &Error{Kind: KindMalformed, Err: fmt.Errorf("decode response: %w", err)}
	}

	if len(respData.Choices) == 0 {
		return nil, &Error{Kind: KindMalformed, Err: errors.New("upstream returned no choices")}
	}

	model := respData.Model
	if model == "" {
		model = c.cfg.Model
	}
	return &Response{
		Content: respData.Choices[0].Message.Content,
		Model:   model,
		Usage: types.TokenUsage{
			EstimatedInputTokens: estimated,
			PromptTokens:         respData.Usage.PromptTokens,
			CompletionTokens:     respData.Usage.CompletionTokens,
			TotalTokens:          respData.Usage.TotalTokens,
		},
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.cfg.Model
}

// Breaker exposes the circuit breaker for health reporting.
func (c *OpenAIClient) Breaker() *Breaker {
	return c.breaker
}

// Compile-time assertion.
var _ ChatClient = (*OpenAIClient)(nil)
