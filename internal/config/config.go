// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Browser     BrowserConfig     `yaml:"browser" mapstructure:"browser"`
	Acquire     AcquireConfig     `yaml:"acquire" mapstructure:"acquire"`
	Extract     ExtractConfig     `yaml:"extract" mapstructure:"extract"`
	Validate    ValidateConfig    `yaml:"validate" mapstructure:"validate"`
	Enrich      EnrichConfig      `yaml:"enrich" mapstructure:"enrich"`
	Consolidate ConsolidateConfig `yaml:"consolidate" mapstructure:"consolidate"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity  PerplexityConfig  `yaml:"perplexity" mapstructure:"perplexity"`
	Compliance  ComplianceConfig  `yaml:"compliance" mapstructure:"compliance"`
	Market      MarketConfig      `yaml:"market" mapstructure:"market"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BrowserConfig configures the headless-browser pool.
type BrowserConfig struct {
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	Token           string `yaml:"token" mapstructure:"token"`
	MaxInstances    int    `yaml:"max_instances" mapstructure:"max_instances"`
	IdleTTLMins     int    `yaml:"idle_ttl_mins" mapstructure:"idle_ttl_mins"`
	SweepMins       int    `yaml:"sweep_mins" mapstructure:"sweep_mins"`
	SettleDelayMsec int    `yaml:"settle_delay_msec" mapstructure:"settle_delay_msec"`
}

// AcquireConfig configures the content acquisition cascade.
type AcquireConfig struct {
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBaseMsec int `yaml:"retry_base_msec" mapstructure:"retry_base_msec"`
	RetryMaxMsec  int `yaml:"retry_max_msec" mapstructure:"retry_max_msec"`
}

// ExtractConfig configures the entity extraction engine.
type ExtractConfig struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ValidateConfig configures the validation engine.
type ValidateConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// EnrichConfig configures the enrichment engine.
type EnrichConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	FanOutLimit    int  `yaml:"fan_out_limit" mapstructure:"fan_out_limit"`
	CrossReference bool `yaml:"cross_reference" mapstructure:"cross_reference"`
}

// ConsolidateConfig configures product consolidation.
type ConsolidateConfig struct {
	JoinThreshold float64 `yaml:"join_threshold" mapstructure:"join_threshold"`
	MaxVariants   int     `yaml:"max_variants" mapstructure:"max_variants"`
}

// CacheConfig configures the extraction result cache.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled" mapstructure:"enabled"`
	TTLHours int  `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// PipelineConfig bounds a full pipeline invocation.
type PipelineConfig struct {
	// TimeoutSecs is the overall wall-clock limit per URL.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ComplianceConfig holds the compliance lookup service settings.
type ComplianceConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// MarketConfig holds the market intelligence service settings.
type MarketConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CacheTTL returns the configured cache TTL as a duration.
func (c CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// Timeout returns the pipeline wall-clock limit as a duration.
func (p PipelineConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "catalog.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("browser.max_instances", 3)
	v.SetDefault("browser.idle_ttl_mins", 30)
	v.SetDefault("browser.sweep_mins", 5)
	v.SetDefault("browser.settle_delay_msec", 2000)
	v.SetDefault("acquire.retry_attempts", 3)
	v.SetDefault("acquire.retry_base_msec", 1500)
	v.SetDefault("acquire.retry_max_msec", 10000)
	v.SetDefault("extract.model", "claude-haiku-4-5-20251001")
	v.SetDefault("extract.max_tokens", 4096)
	v.SetDefault("extract.temperature", 0.1)
	v.SetDefault("validate.enabled", true)
	v.SetDefault("validate.model", "sonar-pro")
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.fan_out_limit", 5)
	v.SetDefault("enrich.cross_reference", true)
	v.SetDefault("consolidate.join_threshold", 0.75)
	v.SetDefault("consolidate.max_variants", 10)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("pipeline.timeout_secs", 180)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("compliance.rate_limit", 5)
	v.SetDefault("compliance.burst", 5)
	v.SetDefault("market.rate_limit", 5)
	v.SetDefault("market.burst", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
