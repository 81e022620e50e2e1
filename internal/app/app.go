package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/sift/internal/clients/alphavantage"
	"github.com/bobmcallan/sift/internal/clients/claude"
	"github.com/bobmcallan/sift/internal/clients/eodhd"
	"github.com/bobmcallan/sift/internal/clients/gemini"
	"github.com/bobmcallan/sift/internal/clients/yahoo"
	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
	"github.com/bobmcallan/sift/internal/services/analysis"
	"github.com/bobmcallan/sift/internal/services/events"
	"github.com/bobmcallan/sift/internal/services/market"
	"github.com/bobmcallan/sift/internal/services/scoring"
	"github.com/bobmcallan/sift/internal/services/screener"
	"github.com/bobmcallan/sift/internal/storage"
)

// App holds all initialized services, clients, and the MCP server.
// It is the shared core used by cmd/sift-server and the tests.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Cache       interfaces.CacheStore
	Providers   []interfaces.MarketDataProvider
	Chain       *market.ProviderChain
	Resolver    *common.SymbolResolver
	Scoring     *scoring.Engine
	Screener    *screener.Screener
	Analysis    *analysis.Service
	Overview    *market.OverviewService
	Events      *events.Hub
	LLM         interfaces.LanguageModel
	MCPServer   *server.MCPServer
	StartupTime time.Time

	scheduler       *Scheduler
	warmCacheCancel context.CancelFunc
	shutdownTracing func(context.Context) error
}

// Option overrides a dependency New would otherwise build from config
type Option func(*options)

type options struct {
	providers    []interfaces.MarketDataProvider
	llm          interfaces.LanguageModel
	llmSet       bool
	cache        interfaces.CacheStore
	storageOpts  []storage.Option
	screenerOpts []screener.Option
}

// WithProviders replaces the configured provider waterfall
func WithProviders(providers ...interfaces.MarketDataProvider) Option {
	return func(o *options) {
		o.providers = providers
	}
}

// WithLanguageModel replaces the configured language model. nil disables
// commentary.
func WithLanguageModel(llm interfaces.LanguageModel) Option {
	return func(o *options) {
		o.llm = llm
		o.llmSet = true
	}
}

// WithCache replaces the configured cache store
func WithCache(cache interfaces.CacheStore) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithStorageOptions passes options to the configured cache store
func WithStorageOptions(opts ...storage.Option) Option {
	return func(o *options) {
		o.storageOpts = append(o.storageOpts, opts...)
	}
}

// WithScreenerOptions passes options to the screener
func WithScreenerOptions(opts ...screener.Option) Option {
	return func(o *options) {
		o.screenerOpts = append(o.screenerOpts, opts...)
	}
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp loads configuration and initializes the App.
// configPath may be empty, in which case SIFT_CONFIG, the binary directory
// and then config/sift.toml are tried.
func NewApp(configPath string) (*App, error) {
	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	if err := common.LoadEnvFiles(filepath.Join(binDir, ".env"), ".env"); err != nil {
		return nil, err
	}

	if configPath == "" {
		configPath = os.Getenv("SIFT_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "sift.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/sift.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative paths to the binary directory
	if config.Storage.Cache.Path != "" && !filepath.IsAbs(config.Storage.Cache.Path) {
		config.Storage.Cache.Path = filepath.Join(binDir, config.Storage.Cache.Path)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	logger.Info().Str("config", configPath).Msg("Configuration loaded")

	return New(config, logger)
}

// New wires every service from an already loaded config
func New(config *common.Config, logger *common.Logger, opts ...Option) (*App, error) {
	startupStart := time.Now()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	shutdownTracing, err := common.InitTracing(config.Tracing)
	if err != nil {
		logger.Warn().Err(err).Msg("Tracing unavailable, continuing without spans")
	}

	cache := o.cache
	if cache == nil {
		cache, err = storage.NewCacheStore(logger, config.Storage.Cache, o.storageOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
	}

	providers := o.providers
	if providers == nil {
		providers = buildProviders(config, logger)
	}
	if len(providers) == 0 {
		cache.Close()
		return nil, fmt.Errorf("no market data providers configured (order: %s)", strings.Join(config.Providers.Order, ","))
	}

	llm := o.llm
	if !o.llmSet {
		llm = buildLanguageModel(context.Background(), config.LLM, logger)
	}

	aliases := map[string]string{}
	if config.Symbols.AliasFile != "" {
		aliases, err = common.LoadAliasFile(config.Symbols.AliasFile)
		if err != nil {
			logger.Warn().Err(err).Str("path", config.Symbols.AliasFile).Msg("Alias file unavailable, using built-in aliases")
		}
	}
	resolver := common.NewSymbolResolver(aliases)

	chain := market.NewProviderChain(cache, providers, common.NewRetryPolicy(config.Retry), logger)
	engine := scoring.NewEngineFromConfig(config.Scoring)
	analysisService := analysis.NewService(chain, resolver, engine, llm, config.Symbols.MaxBatch, logger)

	hub := events.NewHub(logger)
	go hub.Run()

	screenerOpts := []screener.Option{
		screener.WithCommentator(analysisService),
		screener.WithEvents(hub),
	}
	if config.Screen.UniverseFile != "" {
		universe, err := screener.LoadUniverseFile(config.Screen.UniverseFile)
		if err != nil {
			logger.Warn().Err(err).Str("path", config.Screen.UniverseFile).Msg("Universe file unavailable, using default universe")
		} else {
			screenerOpts = append(screenerOpts, screener.WithUniverse(universe))
		}
	}
	screenerOpts = append(screenerOpts, o.screenerOpts...)
	screenerService := screener.NewScreener(chain, resolver, engine, config.Screen, logger, screenerOpts...)

	mcpServer := server.NewMCPServer(
		"sift",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	a := &App{
		Config:          config,
		Logger:          logger,
		Cache:           cache,
		Providers:       providers,
		Chain:           chain,
		Resolver:        resolver,
		Scoring:         engine,
		Screener:        screenerService,
		Analysis:        analysisService,
		Overview:        market.NewOverviewService(chain, logger),
		Events:          hub,
		LLM:             llm,
		MCPServer:       mcpServer,
		StartupTime:     startupStart,
		shutdownTracing: shutdownTracing,
	}

	a.registerTools()

	logger.Info().
		Strs("providers", chain.Providers()).
		Bool("commentary", analysisService.CommentaryEnabled()).
		Int("universe", len(screenerService.Universe())).
		Str("startup", time.Since(startupStart).String()).
		Msg("App initialized")

	return a, nil
}

// buildProviders creates vendor clients in configured waterfall order.
// Providers that need a key are skipped when none is available.
func buildProviders(config *common.Config, logger *common.Logger) []interfaces.MarketDataProvider {
	var providers []interfaces.MarketDataProvider
	clients := config.Clients

	for _, name := range config.Providers.Order {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "yahoo", "yahoo_alt":
			cfg, build := clients.Yahoo, yahoo.NewClient
			if strings.EqualFold(strings.TrimSpace(name), "yahoo_alt") {
				cfg, build = clients.YahooAlt, yahoo.NewAltClient
			}
			opts := []yahoo.ClientOption{
				yahoo.WithLogger(logger),
				yahoo.WithRateLimit(cfg.RateLimit),
				yahoo.WithTimeout(cfg.GetTimeout()),
			}
			if cfg.BaseURL != "" {
				opts = append(opts, yahoo.WithBaseURL(cfg.BaseURL))
			}
			providers = append(providers, build(opts...))
		case "eodhd":
			key, err := common.ResolveAPIKey("eodhd_api_key", clients.EODHD.APIKey)
			if err != nil {
				logger.Warn().Msg("EODHD API key not configured - provider skipped")
				continue
			}
			opts := []eodhd.ClientOption{
				eodhd.WithLogger(logger),
				eodhd.WithRateLimit(clients.EODHD.RateLimit),
				eodhd.WithTimeout(clients.EODHD.GetTimeout()),
			}
			if clients.EODHD.BaseURL != "" {
				opts = append(opts, eodhd.WithBaseURL(clients.EODHD.BaseURL))
			}
			providers = append(providers, eodhd.NewClient(key, opts...))
		case "alphavantage":
			key, err := common.ResolveAPIKey("alphavantage_api_key", clients.AlphaVantage.APIKey)
			if err != nil {
				logger.Warn().Msg("Alpha Vantage API key not configured - provider skipped")
				continue
			}
			opts := []alphavantage.ClientOption{
				alphavantage.WithLogger(logger),
				alphavantage.WithRateLimit(clients.AlphaVantage.RateLimit),
				alphavantage.WithTimeout(clients.AlphaVantage.GetTimeout()),
			}
			if clients.AlphaVantage.BaseURL != "" {
				opts = append(opts, alphavantage.WithBaseURL(clients.AlphaVantage.BaseURL))
			}
			providers = append(providers, alphavantage.NewClient(key, opts...))
		default:
			logger.Warn().Str("provider", name).Msg("Unknown provider in order - skipped")
		}
	}
	return providers
}

// buildLanguageModel returns the configured model, or nil when commentary
// is disabled or no key is available
func buildLanguageModel(ctx context.Context, cfg common.LLMConfig, logger *common.Logger) interfaces.LanguageModel {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil
	case "gemini":
		key, err := common.ResolveAPIKey("gemini_api_key", cfg.APIKey)
		if err != nil {
			logger.Warn().Msg("Gemini API key not configured - commentary will be unavailable")
			return nil
		}
		client, err := gemini.NewClient(ctx, key,
			gemini.WithModel(cfg.Model),
			gemini.WithMaxTokens(cfg.MaxTokens),
			gemini.WithTemperature(cfg.Temperature),
			gemini.WithLogger(logger),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
			return nil
		}
		return client
	case "claude":
		key, err := common.ResolveAPIKey("claude_api_key", cfg.APIKey)
		if err != nil {
			logger.Warn().Msg("Anthropic API key not configured - commentary will be unavailable")
			return nil
		}
		return claude.NewClient(key,
			claude.WithModel(cfg.Model),
			claude.WithMaxTokens(cfg.MaxTokens),
			claude.WithTemperature(cfg.Temperature),
			claude.WithLogger(logger),
		)
	default:
		logger.Warn().Str("provider", cfg.Provider).Msg("Unknown LLM provider - commentary disabled")
		return nil
	}
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, cancel warm cache, close cache, flush spans.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	if a.warmCacheCancel != nil {
		a.warmCacheCancel()
		a.warmCacheCancel = nil
	}
	if a.Events != nil {
		a.Events.Stop()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Cache close failed")
		}
		a.Cache = nil
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Tracing shutdown failed")
		}
		a.shutdownTracing = nil
	}
}

// StartWarmCache launches a one-off background prefetch of the universe.
func (a *App) StartWarmCache() {
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	a.warmCacheCancel = warmCancel
	go func() {
		defer warmCancel()
		warmCache(warmCtx, a.Chain, a.Screener.Universe(), a.screenPeriod(), a.Config.Screen.Workers, a.Logger)
	}()
}

// StartScheduler registers the cron jobs and starts them. It is a no-op
// when the scheduler is disabled in config.
func (a *App) StartScheduler() error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduler disabled")
		return nil
	}
	s := NewScheduler(a.Logger)
	if err := s.Register(a.Config.Scheduler.WarmCache, "warm_cache", a.runWarmCache); err != nil {
		return err
	}
	if err := s.Register(a.Config.Scheduler.Screen, "screen", a.runScreen); err != nil {
		return err
	}
	s.Start()
	a.scheduler = s
	return nil
}
