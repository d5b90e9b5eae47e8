package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama-3.1-70b-versatile"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 25000
)

// Config holds the fixed endpoint, model and sampling parameters.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int

	// HTTPClient overrides the transport; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// Client sends chat-completion requests to an OpenAI-compatible endpoint.
// Each call is a single buffered request: no streaming, no retry.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// New creates a Client. It fails fast with ErrMissingCredential when no API
// key is set; empty model/base URL/sampling fields fall back to defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		temperature: float32(temperature),
		maxTokens:   maxTokens,
		logger:      slog.Default(),
	}, nil
}

// Model returns the model name sent with every request.
func (c *Client) Model() string { return c.model }

// Complete sends messages and returns the generated text of the first choice.
// Every failure is a *RequestError.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c == nil || c.client == nil {
		return "", &RequestError{Err: ErrMissingCredential}
	}

	reqID := uuid.New().String()
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	c.logger.Debug("completion request", "request_id", reqID, "model", c.model, "messages", len(oaMsgs))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    oaMsgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		reqErr := toRequestError(err)
		c.logger.Error("completion request failed", "request_id", reqID, "status", reqErr.Status, "error", err)
		return "", reqErr
	}

	if len(resp.Choices) == 0 {
		c.logger.Error("completion returned no choices", "request_id", reqID)
		return "", &RequestError{StatusCode: http.StatusOK, Status: "200 OK", Err: errors.New("response has no choices")}
	}

	c.logger.Debug("completion response",
		"request_id", reqID,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func toRequestError(err error) *RequestError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RequestError{StatusCode: apiErr.HTTPStatusCode, Status: statusText(apiErr.HTTPStatusCode), Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &RequestError{StatusCode: reqErr.HTTPStatusCode, Status: statusText(reqErr.HTTPStatusCode), Err: err}
	}
	return &RequestError{Err: fmt.Errorf("executing request: %w", err)}
}

func statusText(code int) string {
	if code == 0 {
		return ""
	}
	return fmt.Sprintf("%d %s", code, http.StatusText(code))
}
