// Package screener ranks a universe of symbols by composite score
package screener

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
	"github.com/bobmcallan/sift/internal/models"
	"github.com/bobmcallan/sift/internal/signals"
)

// Defaults applied when neither options nor config set a value
const (
	DefaultWorkers     = 5
	DefaultTopK        = 10
	DefaultMaxUniverse = 50
	DefaultMinBars     = 20
	DefaultTimeout     = 2 * time.Minute
)

// DefaultUniverse is screened when no universe file is configured
var DefaultUniverse = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "META",
	"NVDA", "TSLA", "JPM", "V", "JNJ",
	"WMT", "PG", "MA", "UNH", "HD",
}

// Scorer turns indicators and fundamentals into a ScoreCard
type Scorer interface {
	Score(symbol string, ind *models.IndicatorSet, fund *models.FundamentalInfo) *models.ScoreCard
}

// Commentator writes prose for a finished ScoreCard
type Commentator interface {
	Commentary(ctx context.Context, card *models.ScoreCard) (string, error)
}

// EventPublisher receives progress events for live subscribers
type EventPublisher interface {
	Publish(event models.ScreenEvent)
}

// Option configures a Screener
type Option func(*Screener)

// WithEvents publishes screen progress to p
func WithEvents(p EventPublisher) Option {
	return func(s *Screener) {
		s.events = p
	}
}

// WithCommentator enables commentary on ranked candidates
func WithCommentator(c Commentator) Option {
	return func(s *Screener) {
		s.commentator = c
	}
}

// WithUniverse replaces the default universe
func WithUniverse(symbols []string) Option {
	return func(s *Screener) {
		if len(symbols) > 0 {
			s.universe = symbols
		}
	}
}

// WithClock overrides the time source used for run timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Screener) {
		if now != nil {
			s.now = now
		}
	}
}

// Screener evaluates symbols on a bounded worker pool and keeps the best
// candidates. Per-symbol failures never fail the pass.
type Screener struct {
	market      interfaces.MarketDataService
	resolver    *common.SymbolResolver
	scorer      Scorer
	computer    *signals.Computer
	commentator Commentator
	events      EventPublisher
	config      common.ScreenConfig
	universe    []string
	logger      *common.Logger
	now         func() time.Time

	mu   sync.RWMutex
	last *models.ScreenResult
}

// NewScreener creates a screener
func NewScreener(
	market interfaces.MarketDataService,
	resolver *common.SymbolResolver,
	scorer Scorer,
	config common.ScreenConfig,
	logger *common.Logger,
	opts ...Option,
) *Screener {
	s := &Screener{
		market:   market,
		resolver: resolver,
		scorer:   scorer,
		computer: signals.NewComputer(),
		config:   config,
		universe: DefaultUniverse,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Universe returns the configured universe
func (s *Screener) Universe() []string {
	return append([]string(nil), s.universe...)
}

// Last returns the most recent completed screen, or nil
func (s *Screener) Last() *models.ScreenResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

type scored struct {
	index int
	card  *models.ScoreCard
}

// Screen scores every resolvable symbol in universe and returns the
// potential candidates, best first. Ties keep universe order.
func (s *Screener) Screen(ctx context.Context, universe []string, opts interfaces.ScreenOptions) (*models.ScreenResult, error) {
	opts = s.applyDefaults(opts)
	started := s.now()

	symbols := s.resolver.ResolveAll(universe, s.maxUniverse())

	ctx, span := common.StartSpan(ctx, "screener.screen",
		attribute.Int("universe", len(symbols)),
		attribute.Int("workers", opts.Workers),
		attribute.Int("top_k", opts.TopK))
	defer span.End()

	result := &models.ScreenResult{
		RunID:      uuid.New().String(),
		Candidates: []*models.ScoreCard{},
		Universe:   len(symbols),
		StartedAt:  started,
	}

	if len(symbols) == 0 {
		result.Elapsed = s.now().Sub(started).String()
		s.store(result)
		return result, nil
	}

	s.logger.Info().
		Str("run_id", result.RunID).
		Int("universe", len(symbols)).
		Int("workers", opts.Workers).
		Str("period", string(opts.Period)).
		Msg("Screen started")
	s.publish(models.ScreenEvent{Type: models.EventScreenStarted, RunID: result.RunID, Universe: len(symbols)})

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		cards    []scored
		failed   int
		belowCut int
	)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(opts.Workers, len(symbols)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				symbol := symbols[i]
				card, err := s.evaluate(runCtx, symbol, opts.Period)

				// Work finishing after the deadline does not count
				if runCtx.Err() != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}

				mu.Lock()
				switch {
				case err != nil:
					failed++
					s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Screen symbol skipped")
				case !card.Potential:
					belowCut++
					cards = append(cards, scored{index: i})
				default:
					cards = append(cards, scored{index: i, card: card})
				}
				mu.Unlock()

				if err != nil {
					s.publish(models.ScreenEvent{Type: models.EventSymbolFailed, RunID: result.RunID, Symbol: symbol, Error: err.Error()})
				} else {
					s.publish(models.ScreenEvent{Type: models.EventSymbolScored, RunID: result.RunID, Symbol: symbol, Score: card.Total, Potential: card.Potential})
				}
			}
		}()
	}

feed:
	for i := range symbols {
		select {
		case jobs <- i:
		case <-runCtx.Done():
			mu.Lock()
			failed += len(symbols) - i
			mu.Unlock()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	result.Evaluated = len(cards)
	result.Failed = failed
	result.BelowCut = belowCut
	result.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
	result.Candidates = rank(cards, opts.TopK)

	if opts.Commentary && s.commentator != nil {
		s.annotate(ctx, result.Candidates)
	}

	result.Elapsed = s.now().Sub(started).String()
	span.SetAttributes(
		attribute.Int("candidates", len(result.Candidates)),
		attribute.Bool("timed_out", result.TimedOut))

	s.logger.Info().
		Str("run_id", result.RunID).
		Int("candidates", len(result.Candidates)).
		Int("evaluated", result.Evaluated).
		Int("failed", result.Failed).
		Int("below_cutoff", result.BelowCut).
		Bool("timed_out", result.TimedOut).
		Str("elapsed", result.Elapsed).
		Msg("Screen complete")
	s.publish(models.ScreenEvent{
		Type:       models.EventScreenCompleted,
		RunID:      result.RunID,
		Universe:   result.Universe,
		Candidates: len(result.Candidates),
	})

	s.store(result)
	return result, nil
}

// evaluate runs one symbol through fetch, indicators and scoring
func (s *Screener) evaluate(ctx context.Context, symbol string, period models.Period) (*models.ScoreCard, error) {
	series, err := s.market.FetchSeries(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	if minBars := s.minBars(); series.Len() < minBars {
		return nil, fmt.Errorf("%w: %s has %d bars, need %d", common.ErrNoDataAvailable, symbol, series.Len(), minBars)
	}

	ind := s.computer.Compute(series)

	fund, err := s.market.FetchFundamentals(ctx, symbol)
	if err != nil {
		s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Fundamentals unavailable, scoring as neutral")
		fund = models.NeutralFundamentals(symbol)
	}

	card := s.scorer.Score(symbol, ind, fund)
	if card == nil {
		return nil, fmt.Errorf("no score produced for %s", symbol)
	}
	common.SanitizeValue(card)
	return card, nil
}

// annotate adds commentary to each candidate. Failures leave it empty.
func (s *Screener) annotate(ctx context.Context, cards []*models.ScoreCard) {
	for _, card := range cards {
		text, err := s.commentator.Commentary(ctx, card)
		if err != nil {
			s.logger.Warn().Str("symbol", card.Symbol).Err(err).Msg("Commentary failed")
			continue
		}
		card.Commentary = text
	}
}

// rank sorts potential cards by total descending, breaking ties by universe
// index, and keeps at most topK
func rank(cards []scored, topK int) []*models.ScoreCard {
	potential := make([]scored, 0, len(cards))
	for _, c := range cards {
		if c.card != nil {
			potential = append(potential, c)
		}
	}

	sort.SliceStable(potential, func(i, j int) bool {
		if potential[i].card.Total != potential[j].card.Total {
			return potential[i].card.Total > potential[j].card.Total
		}
		return potential[i].index < potential[j].index
	})

	if topK > 0 && len(potential) > topK {
		potential = potential[:topK]
	}

	out := make([]*models.ScoreCard, len(potential))
	for i, c := range potential {
		out[i] = c.card
	}
	return out
}

func (s *Screener) publish(event models.ScreenEvent) {
	if s.events == nil {
		return
	}
	event.Timestamp = s.now()
	s.events.Publish(event)
}

func (s *Screener) store(result *models.ScreenResult) {
	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
}

func (s *Screener) applyDefaults(opts interfaces.ScreenOptions) interfaces.ScreenOptions {
	if opts.Workers <= 0 {
		opts.Workers = s.config.Workers
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.TopK <= 0 {
		opts.TopK = s.config.TopK
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Period == "" {
		opts.Period = models.ParsePeriod(s.config.Period)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = s.config.GetTimeout()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return opts
}

func (s *Screener) maxUniverse() int {
	if s.config.MaxUniverse > 0 {
		return s.config.MaxUniverse
	}
	return DefaultMaxUniverse
}

func (s *Screener) minBars() int {
	if s.config.MinBars > 0 {
		return s.config.MinBars
	}
	return DefaultMinBars
}

type universeFile struct {
	Symbols []string `yaml:"symbols"`
}

// LoadUniverseFile reads a YAML universe of the form `symbols: [AAPL, MSFT]`
func LoadUniverseFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file %s: %w", path, err)
	}
	var f universeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse universe file %s: %w", path, err)
	}
	if len(f.Symbols) == 0 {
		return nil, fmt.Errorf("universe file %s lists no symbols", path)
	}
	return f.Symbols, nil
}

var _ interfaces.ScreenerService = (*Screener)(nil)
