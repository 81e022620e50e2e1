// Package gemini provides a client for the Google Gemini API
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
)

const (
	ProviderName       = "gemini"
	DefaultModel       = "gemini-2.0-flash"
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
)

// Client implements interfaces.LanguageModel
type Client struct {
	client      *genai.Client
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	logger      *common.Logger
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
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		logger:      common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}

	genaiClient, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = genaiClient

	return c, nil
}

// Name identifies the backing provider
func (c *Client) Name() string {
	return ProviderName
}

// Model returns the configured model
func (c *Client) Model() string {
	return c.model
}

// buildConfig merges per-request options over the client defaults
func (c *Client) buildConfig(opts interfaces.GenerateOptions) *genai.GenerateContentConfig {
	temp := opts.Temperature
	if temp <= 0 {
		temp = c.temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temp)),
		MaxOutputTokens: int32(maxTokens),
	}
	if opts.System != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}
	return config
}

// Generate returns the full completion for prompt
func (c *Client) Generate(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	c.logger.Debug().Str("model", c.model).Int("prompt_len", len(prompt)).Msg("Generating content")

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), c.buildConfig(opts))
	if err != nil {
		return "", wrapError(err)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return "", &common.ProviderError{Provider: ProviderName, Err: err}
	}
	return text, nil
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

// GenerateStream forwards each streamed text chunk to onChunk
func (c *Client) GenerateStream(ctx context.Context, prompt string, opts interfaces.GenerateOptions, onChunk func(string) error) error {
	c.logger.Debug().Str("model", c.model).Msg("Streaming content")

	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, genai.Text(prompt), c.buildConfig(opts)) {
		if err != nil {
			return wrapError(err)
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("empty text in response")
	}
	return sb.String(), nil
}

// wrapError maps genai failures onto the shared taxonomy
func wrapError(err error) error {
	if common.IsRateLimited(err) {
		return &common.ProviderError{Provider: ProviderName, Err: fmt.Errorf("%w: %v", common.ErrRateLimited, err)}
	}
	return &common.ProviderError{Provider: ProviderName, Err: err}
}

var _ interfaces.LanguageModel = (*Client)(nil)
