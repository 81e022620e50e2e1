// Package claude provides a language model client backed by the Anthropic API
package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
)

const (
	ProviderName       = "claude"
	DefaultModel       = "claude-sonnet-4-20250514"
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
)

// Client implements interfaces.LanguageModel
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *common.Logger
	reqOpts     []option.RequestOption
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens sets the default output token limit
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTemperature sets the default sampling temperature
func WithTemperature(t float64) ClientOption {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithBaseURL points the client at a different API host
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.reqOpts = append(c.reqOpts, option.WithBaseURL(baseURL))
	}
}

// WithMaxRetries sets the SDK level retry count
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.reqOpts = append(c.reqOpts, option.WithMaxRetries(n))
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Claude client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		logger:      common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, c.reqOpts...)
	c.client = anthropic.NewClient(reqOpts...)

	return c
}

// Name identifies the backing provider
func (c *Client) Name() string {
	return ProviderName
}

// Model returns the configured model
func (c *Client) Model() string {
	return c.model
}

func (c *Client) buildParams(prompt string, opts interfaces.GenerateOptions) anthropic.MessageNewParams {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	temp := opts.Temperature
	if temp <= 0 {
		temp = c.temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(temp)
	}

	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: opts.System},
		}
	}
	return params
}

// Generate returns the full completion for prompt
func (c *Client) Generate(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	c.logger.Debug().Str("model", c.model).Int("prompt_len", len(prompt)).Msg("Generating content")

	resp, err := c.client.Messages.New(ctx, c.buildParams(prompt, opts))
	if err != nil {
		return "", wrapError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", &common.ProviderError{Provider: ProviderName, Err: fmt.Errorf("empty response")}
	}
	return text.String(), nil
}

// GenerateAsync runs Generate on its own goroutine
func (c *Client) GenerateAsync(ctx context.Context, prompt string, opts interfaces.GenerateOptions) <-chan interfaces.GenerateResult {
	out := make(chan interfaces.GenerateResult, 1)
	go func() {
		defer close(out)
		text, err := c.Generate(ctx, prompt, opts)
		out <- interfaces.GenerateResult{Text: text, Err: err}
	}()
	return out
}

// GenerateStream forwards text deltas to onChunk as they arrive
func (c *Client) GenerateStream(ctx context.Context, prompt string, opts interfaces.GenerateOptions, onChunk func(string) error) error {
	c.logger.Debug().Str("model", c.model).Msg("Streaming content")

	stream := c.client.Messages.NewStreaming(ctx, c.buildParams(prompt, opts))
	defer stream.Close()

	for stream.Next() {
		ev, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
			if err := onChunk(delta.Text); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return wrapError(err)
	}
	return nil
}

// wrapError maps SDK failures onto the shared taxonomy
func wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &common.ProviderError{Provider: ProviderName, StatusCode: apiErr.StatusCode, Err: err}
	}
	if common.IsRateLimited(err) {
		return &common.ProviderError{Provider: ProviderName, StatusCode: http.StatusTooManyRequests, Err: err}
	}
	return &common.ProviderError{Provider: ProviderName, Err: err}
}

var _ interfaces.LanguageModel = (*Client)(nil)
