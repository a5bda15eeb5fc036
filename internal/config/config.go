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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	BrightData BrightDataConfig `yaml:"brightdata" mapstructure:"brightdata"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the cache/run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BrightDataConfig configures the BrightData Datasets API used for bulk
// LinkedIn profile collection.
type BrightDataConfig struct {
	Key                string `yaml:"key" mapstructure:"key"`
	DatasetID          string `yaml:"dataset_id" mapstructure:"dataset_id"`
	BaseURL            string `yaml:"base_url" mapstructure:"base_url"`
	BatchSize          int    `yaml:"batch_size" mapstructure:"batch_size"`
	MaxRunningJobs     int    `yaml:"max_running_jobs" mapstructure:"max_running_jobs"`
	CooldownSecs       int    `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
	TriggerRetries     int    `yaml:"trigger_retries" mapstructure:"trigger_retries"`
	TriggerBackoffSecs int    `yaml:"trigger_backoff_secs" mapstructure:"trigger_backoff_secs"`
	InterBatchDelayMs  int    `yaml:"inter_batch_delay_ms" mapstructure:"inter_batch_delay_ms"`
	PollIntervalSecs   int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	PollTimeoutSecs    int    `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
}

// PollInterval returns the snapshot poll interval as a duration.
func (c BrightDataConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// PollTimeout returns the per-snapshot wall-clock budget as a duration.
func (c BrightDataConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings for the LLM stages.
type AnthropicConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BriefModel     string `yaml:"brief_model" mapstructure:"brief_model"`
	MessagingModel string `yaml:"messaging_model" mapstructure:"messaging_model"`
	SitemapModel   string `yaml:"sitemap_model" mapstructure:"sitemap_model"`
	MaxTokens      int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	RetryAttempts  int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// PerplexityConfig holds Perplexity API settings for the research fallback.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PipelineConfig configures per-run concurrency and the research fallback.
type PipelineConfig struct {
	MaxConcurrentProspects int `yaml:"max_concurrent_prospects" mapstructure:"max_concurrent_prospects"`
	MaxConcurrentHTTP      int `yaml:"max_concurrent_http" mapstructure:"max_concurrent_http"`
	MaxConcurrentLLM       int `yaml:"max_concurrent_llm" mapstructure:"max_concurrent_llm"`
	MaxResearchOfferings   int `yaml:"max_research_offerings" mapstructure:"max_research_offerings"`
}

// ScrapeConfig configures the website scraper.
type ScrapeConfig struct {
	HTTPTimeoutSecs   int `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
	MaxServicesPages  int `yaml:"max_services_pages" mapstructure:"max_services_pages"`
	MaxMarketsPages   int `yaml:"max_markets_pages" mapstructure:"max_markets_pages"`
	MaxCaseStudyPages int `yaml:"max_case_study_pages" mapstructure:"max_case_study_pages"`
}

// ServerConfig configures the status API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MESSAGING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("brightdata.base_url", "https://api.brightdata.com/datasets/v3")
	v.SetDefault("brightdata.batch_size", 50)
	v.SetDefault("brightdata.max_running_jobs", 99)
	v.SetDefault("brightdata.cooldown_secs", 120)
	v.SetDefault("brightdata.trigger_retries", 3)
	v.SetDefault("brightdata.trigger_backoff_secs", 2)
	v.SetDefault("brightdata.inter_batch_delay_ms", 500)
	v.SetDefault("brightdata.poll_interval_secs", 30)
	v.SetDefault("brightdata.poll_timeout_secs", 600)
	v.SetDefault("anthropic.brief_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.messaging_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.sitemap_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.retry_attempts", 3)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("pipeline.max_concurrent_prospects", 20)
	v.SetDefault("pipeline.max_concurrent_http", 50)
	v.SetDefault("pipeline.max_concurrent_llm", 20)
	v.SetDefault("pipeline.max_research_offerings", 5)
	v.SetDefault("scrape.http_timeout_secs", 30)
	v.SetDefault("scrape.max_services_pages", 3)
	v.SetDefault("scrape.max_markets_pages", 3)
	v.SetDefault("scrape.max_case_study_pages", 5)

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
