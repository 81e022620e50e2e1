// Package common provides shared utilities for Sift
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Sift
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Providers   ProvidersConfig `toml:"providers"`
	Retry       RetryConfig     `toml:"retry"`
	Screen      ScreenConfig    `toml:"screen"`
	Scoring     ScoringConfig   `toml:"scoring"`
	Symbols     SymbolsConfig   `toml:"symbols"`
	LLM         LLMConfig       `toml:"llm"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
	Tracing     TracingConfig   `toml:"tracing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds cache storage configuration.
type StorageConfig struct {
	Cache CacheConfig `toml:"cache"`
}

// CacheConfig selects the cache backend and its time-to-live.
type CacheConfig struct {
	Backend string `toml:"backend"` // "memory", "file" or "badger"
	Path    string `toml:"path"`
	TTL     string `toml:"ttl"`
}

// GetTTL parses and returns the cache TTL
func (c *CacheConfig) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// ClientsConfig holds market data API client configurations
type ClientsConfig struct {
	Yahoo        HTTPClientConfig `toml:"yahoo"`
	YahooAlt     HTTPClientConfig `toml:"yahoo_alt"`
	EODHD        HTTPClientConfig `toml:"eodhd"`
	AlphaVantage HTTPClientConfig `toml:"alphavantage"`
}

// HTTPClientConfig holds the settings shared by every vendor client
type HTTPClientConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *HTTPClientConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ProvidersConfig holds the fixed provider priority order.
type ProvidersConfig struct {
	Order []string `toml:"order"`
}

// RetryConfig holds per-provider retry settings
type RetryConfig struct {
	MaxRetries int    `toml:"max_retries"`
	BaseDelay  string `toml:"base_delay"`
	MaxDelay   string `toml:"max_delay"`
}

// GetBaseDelay parses and returns the initial backoff
func (c *RetryConfig) GetBaseDelay() time.Duration {
	d, err := time.ParseDuration(c.BaseDelay)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// GetMaxDelay parses and returns the backoff cap
func (c *RetryConfig) GetMaxDelay() time.Duration {
	d, err := time.ParseDuration(c.MaxDelay)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// ScreenConfig holds screening pass settings
type ScreenConfig struct {
	Workers      int    `toml:"workers"`
	TopK         int    `toml:"top_k"`
	MaxUniverse  int    `toml:"max_universe"`
	MinBars      int    `toml:"min_bars"`
	Period       string `toml:"period"`
	Timeout      string `toml:"timeout"`
	UniverseFile string `toml:"universe_file"`
}

// GetTimeout parses and returns the screening deadline
func (c *ScreenConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// ScoringConfig holds composite score weights and the potential cutoff
type ScoringConfig struct {
	Cutoff  float64        `toml:"cutoff"`
	Weights ScoringWeights `toml:"weights"`
}

// ScoringWeights weights the three sub-scores in the composite total
type ScoringWeights struct {
	Technical   float64 `toml:"technical"`
	Momentum    float64 `toml:"momentum"`
	Fundamental float64 `toml:"fundamental"`
}

// SymbolsConfig holds symbol resolution settings
type SymbolsConfig struct {
	AliasFile string `toml:"alias_file"`
	MaxBatch  int    `toml:"max_batch"`
}

// LLMConfig holds language model configuration
type LLMConfig struct {
	Provider    string  `toml:"provider"` // "gemini", "claude" or "" (disabled)
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

// GetTimeout parses and returns the generation timeout
func (c *LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// SchedulerConfig holds cron specs (with seconds field) for background jobs
type SchedulerConfig struct {
	Enabled   bool   `toml:"enabled"`
	WarmCache string `toml:"warm_cache"`
	Screen    string `toml:"screen"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
	PrettyPrint bool   `toml:"pretty_print"`
}

// DefaultProviderOrder is the fixed waterfall used when config names none.
var DefaultProviderOrder = []string{"yahoo", "yahoo_alt", "eodhd", "alphavantage"}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Cache: CacheConfig{
				Backend: "memory",
				Path:    "data/cache",
				TTL:     "10m",
			},
		},
		Clients: ClientsConfig{
			Yahoo: HTTPClientConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				RateLimit: 5,
				Timeout:   "15s",
			},
			YahooAlt: HTTPClientConfig{
				BaseURL:   "https://query2.finance.yahoo.com",
				RateLimit: 5,
				Timeout:   "15s",
			},
			EODHD: HTTPClientConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
			AlphaVantage: HTTPClientConfig{
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: 1,
				Timeout:   "30s",
			},
		},
		Providers: ProvidersConfig{
			Order: append([]string(nil), DefaultProviderOrder...),
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  "1s",
			MaxDelay:   "30s",
		},
		Screen: ScreenConfig{
			Workers:     5,
			TopK:        10,
			MaxUniverse: 50,
			MinBars:     20,
			Period:      "6mo",
			Timeout:     "2m",
		},
		Scoring: ScoringConfig{
			Cutoff: 60,
			Weights: ScoringWeights{
				Technical:   1,
				Momentum:    1,
				Fundamental: 1,
			},
		},
		Symbols: SymbolsConfig{
			MaxBatch: 5,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash",
			MaxTokens:   2048,
			Temperature: 0.7,
			Timeout:     "60s",
		},
		Scheduler: SchedulerConfig{
			Enabled:   false,
			WarmCache: "0 */5 * * * *",
			Screen:    "0 0 * * * *",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Outputs:  []string{"console"},
			FilePath: "./logs/sift.log",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "sift",
		},
	}
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; variables already set are never overwritten.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	normalizeConfig(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SIFT_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("SIFT_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("SIFT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("SIFT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if backend := os.Getenv("SIFT_CACHE_BACKEND"); backend != "" {
		config.Storage.Cache.Backend = strings.ToLower(backend)
	}

	if ttl := os.Getenv("SIFT_CACHE_TTL"); ttl != "" {
		config.Storage.Cache.TTL = ttl
	}

	if path := os.Getenv("SIFT_DATA_PATH"); path != "" {
		config.Storage.Cache.Path = filepath.Join(path, "cache")
	}

	if order := os.Getenv("SIFT_PROVIDERS"); order != "" {
		var names []string
		for _, name := range strings.Split(order, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, strings.ToLower(name))
			}
		}
		if len(names) > 0 {
			config.Providers.Order = names
		}
	}

	if v := os.Getenv("SIFT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Retry.MaxRetries = n
		}
	}

	if v := os.Getenv("SIFT_SCREEN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Screen.Workers = n
		}
	}

	if v := os.Getenv("SIFT_LLM_PROVIDER"); v != "" {
		config.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("SIFT_LLM_MODEL"); v != "" {
		config.LLM.Model = v
	}

	if v := os.Getenv("SIFT_TRACING_ENABLED"); v != "" {
		config.Tracing.Enabled = v == "true" || v == "1"
	}
}

// normalizeConfig clamps values that would otherwise break the pipeline
func normalizeConfig(config *Config) {
	if config.Retry.MaxRetries < 1 {
		config.Retry.MaxRetries = 1
	}
	if config.Screen.Workers < 1 {
		config.Screen.Workers = 5
	}
	if config.Screen.TopK < 1 {
		config.Screen.TopK = 10
	}
	if config.Screen.MinBars < 1 {
		config.Screen.MinBars = 20
	}
	if config.Symbols.MaxBatch < 1 {
		config.Symbols.MaxBatch = 5
	}
	if len(config.Providers.Order) == 0 {
		config.Providers.Order = append([]string(nil), DefaultProviderOrder...)
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from environment or fallback
func ResolveAPIKey(name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"eodhd_api_key":        {"EODHD_API_KEY", "SIFT_EODHD_API_KEY"},
		"alphavantage_api_key": {"ALPHAVANTAGE_API_KEY", "SIFT_ALPHAVANTAGE_API_KEY"},
		"gemini_api_key":       {"GEMINI_API_KEY", "SIFT_GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"claude_api_key":       {"ANTHROPIC_API_KEY", "SIFT_CLAUDE_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}
