package llm

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/LedMarketing/OpenManus/config"
	"github.com/LedMarketing/OpenManus/models"
	"github.com/sashabaranov/go-openai"
)

// Task selects the fixed system prompt prepended to a completion.
type Task int

const (
	TaskChat Task = iota
	TaskCode
	TaskScraper
)

func (t Task) String() string {
	switch t {
	case TaskChat:
		return "chat"
	case TaskCode:
		return "code"
	case TaskScraper:
		return "scraper"
	}
	return "unknown"
}

// Message is one chat turn sent upstream.
type Message struct {
	Role    string
	Content string
}

// Options overrides the configured model parameters for one call.
// Zero values (nil Temperature) fall back to the client defaults.
type Options struct {
	Model       string
	Temperature *float32
	MaxTokens   int

	// Language parameterises the TaskCode system prompt.
	Language string
}

// Temperature returns a pointer to t for Options.Temperature.
func Temperature(t float32) *float32 {
	return &t
}

// Client talks to an OpenAI-compatible chat completion endpoint
// (Mistral by default). One call per request, no retries.
type Client struct {
	client  *openai.Client
	apiKey  string
	timeout time.Duration
	defs    Options
}

// NewClient builds a Client. A missing API key is not an error here:
// every call then fails with an UpstreamAIError.
func NewClient(cfg config.LLMConfig) *Client {
	return newClient(cfg, nil)
}

func newClient(cfg config.LLMConfig, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "mistral-large-latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	oc.HTTPClient = httpClient

	return &Client{
		client:  openai.NewClientWithConfig(oc),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		defs: Options{
			Model:       cfg.Model,
			Temperature: Temperature(cfg.Temperature),
			MaxTokens:   cfg.MaxTokens,
		},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Complete sends the task's system prompt followed by messages and returns
// the first choice's content.
func (c *Client) Complete(ctx context.Context, task Task, messages []Message, opts Options) (string, error) {
	if !c.Configured() {
		return "", models.UpstreamAIError("AI service is not configured", nil)
	}

	opts = c.withDefaults(opts)

	req := openai.ChatCompletionRequest{
		Model:       opts.Model,
		Temperature: wireTemperature(*opts.Temperature),
		MaxTokens:   opts.MaxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)+1),
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(task, opts.Language),
	})
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		appErr := classifyError(err)
		slog.Error("llm request failed",
			"task", task.String(),
			"model", opts.Model,
			"duration", time.Since(start),
			"error", err,
		)
		return "", appErr
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		slog.Error("llm returned no content", "task", task.String(), "model", opts.Model)
		return "", models.UpstreamAIError("AI service returned an empty response", nil)
	}

	slog.Debug("llm request completed",
		"task", task.String(),
		"model", opts.Model,
		"duration", time.Since(start),
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) withDefaults(o Options) Options {
	if o.Model == "" {
		o.Model = c.defs.Model
	}
	if o.Temperature == nil {
		o.Temperature = c.defs.Temperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = c.defs.MaxTokens
	}
	return o
}

// wireTemperature keeps an explicit 0 on the wire: go-openai omits a zero
// temperature, which would let the provider substitute its own default.
func wireTemperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// classifyError maps upstream failures to caller-safe messages.
func classifyError(err error) *models.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.UpstreamAIError("AI service timed out", err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.UpstreamAIError("AI service rejected the API key", err)
	case status == http.StatusTooManyRequests:
		return models.UpstreamAIError("AI service is rate limiting requests, try again later", err)
	case status != 0:
		return models.UpstreamAIError("AI service returned an error", err)
	}
	return models.UpstreamAIError("failed to reach AI service", err)
}
