// Package interfaces defines service contracts for Sift
package interfaces

import (
	"context"

	"github.com/bobmcallan/sift/internal/models"
)

// MarketDataProvider is a single upstream market data vendor. Implementations
// normalize vendor payloads into the canonical models at their boundary.
type MarketDataProvider interface {
	// Name identifies the provider in logs and stats
	Name() string

	// FetchSeries retrieves daily OHLCV bars, oldest first
	FetchSeries(ctx context.Context, symbol string, period models.Period) (*models.MarketSeries, error)

	// FetchFundamentals retrieves company attributes
	FetchFundamentals(ctx context.Context, symbol string) (*models.FundamentalInfo, error)
}

// GenerateOptions tunes a single language model request
type GenerateOptions struct {
	System      string
	Temperature float64
	MaxTokens   int
}

// GenerateResult carries the outcome of an asynchronous generation
type GenerateResult struct {
	Text string
	Err  error
}

// LanguageModel turns prompts into prose. Failures wrap common.ErrRateLimited
// or common.ErrProvider.
type LanguageModel interface {
	// Name identifies the backing model provider
	Name() string

	// Generate returns the full completion
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateAsync runs Generate in the background; the channel receives
	// exactly one result and is then closed
	GenerateAsync(ctx context.Context, prompt string, opts GenerateOptions) <-chan GenerateResult

	// GenerateStream delivers text chunks to onChunk as they arrive. Returning
	// an error from onChunk stops the stream with that error.
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions, onChunk func(string) error) error
}
