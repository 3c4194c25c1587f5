package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/docintel/internal/cost"
	"github.com/sells-group/docintel/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// OpenAIConfig holds credentials for the structured and chat protocols.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds credentials for the messages protocol.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig configures the layered analysis run.
type PipelineConfig struct {
	LayersFile           string  `yaml:"layers_file" mapstructure:"layers_file"`
	DocumentCharLimit    int     `yaml:"document_char_limit" mapstructure:"document_char_limit"`
	ContextCharLimit     int     `yaml:"context_char_limit" mapstructure:"context_char_limit"`
	LayerDelayMs         int     `yaml:"layer_delay_ms" mapstructure:"layer_delay_ms"`
	CallTimeoutSecs      int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	MaxOutputTokens      int64   `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	FallbackModel        string  `yaml:"fallback_model" mapstructure:"fallback_model"`
	RateLimitBackoffMs   int     `yaml:"rate_limit_backoff_ms" mapstructure:"rate_limit_backoff_ms"`
	MaxRateLimitWaitSecs int     `yaml:"max_rate_limit_wait_secs" mapstructure:"max_rate_limit_wait_secs"`
	RequestsPerSecond    float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// LayerDelay is the pause between consecutive layers of one document.
func (p PipelineConfig) LayerDelay() time.Duration {
	return time.Duration(p.LayerDelayMs) * time.Millisecond
}

// CallTimeout bounds a single model invocation.
func (p PipelineConfig) CallTimeout() time.Duration {
	return time.Duration(p.CallTimeoutSecs) * time.Second
}

// RateLimitBackoff is the wait applied after a 429 without a reset hint.
func (p PipelineConfig) RateLimitBackoff() time.Duration {
	return time.Duration(p.RateLimitBackoffMs) * time.Millisecond
}

// MaxRateLimitWait caps waits derived from provider reset times.
func (p PipelineConfig) MaxRateLimitWait() time.Duration {
	return time.Duration(p.MaxRateLimitWaitSecs) * time.Second
}

// PricingConfig is the per-model token pricing. Rows are a list because model
// identifiers contain dots, which viper treats as key separators.
type PricingConfig struct {
	DefaultModel string       `yaml:"default_model" mapstructure:"default_model"`
	Models       []ModelPrice `yaml:"models" mapstructure:"models"`
}

// ModelPrice is one pricing row in USD per million tokens.
type ModelPrice struct {
	Model  string  `yaml:"model" mapstructure:"model"`
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Table converts the configured rows into a cost.Pricing table. Later rows
// override earlier ones for the same model.
func (p PricingConfig) Table() cost.Pricing {
	models := make(map[string]cost.ModelRate, len(p.Models))
	for _, row := range p.Models {
		models[row.Model] = cost.ModelRate{Input: row.Input, Output: row.Output}
	}
	return cost.Pricing{DefaultModel: p.DefaultModel, Models: models}
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentDocuments int `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
}

// StoreConfig configures the run recorder backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures run health checks and webhook alerting.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	FallbackRateThreshold float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"`
	CostThresholdUSD      float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

func defaultPricing() []map[string]any {
	rows := []ModelPrice{
		{Model: "gpt-4o-mini", Input: 0.15, Output: 0.60},
		{Model: "gpt-4.1-mini", Input: 0.40, Output: 1.60},
		{Model: "gpt-4.1", Input: 2.00, Output: 8.00},
		{Model: "gpt-5", Input: 1.25, Output: 10.00},
		{Model: "o3", Input: 2.00, Output: 8.00},
		{Model: "claude-haiku-4-5-20251001", Input: 1.00, Output: 5.00},
		{Model: "claude-sonnet-4-5-20250929", Input: 3.00, Output: 15.00},
	}
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = map[string]any{"model": r.Model, "input": r.Input, "output": r.Output}
	}
	return out
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOCINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("pipeline.layers_file", "")
	v.SetDefault("pipeline.document_char_limit", 10000)
	v.SetDefault("pipeline.context_char_limit", 2000)
	v.SetDefault("pipeline.layer_delay_ms", 1000)
	v.SetDefault("pipeline.call_timeout_secs", 120)
	v.SetDefault("pipeline.max_output_tokens", 4000)
	v.SetDefault("pipeline.fallback_model", "gpt-4o-mini")
	v.SetDefault("pipeline.rate_limit_backoff_ms", 5000)
	v.SetDefault("pipeline.max_rate_limit_wait_secs", 60)
	v.SetDefault("pipeline.requests_per_second", 2.0)
	v.SetDefault("pricing.default_model", "gpt-4.1")
	v.SetDefault("pricing.models", defaultPricing())
	v.SetDefault("batch.max_concurrent_documents", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "docintel.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.fallback_rate_threshold", 0.25)
	v.SetDefault("monitoring.cost_threshold_usd", 50.0)
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

// Validate checks the settings needed to run the given layers. Every protocol
// a layer uses must have credentials, and the fallback chat protocol always
// needs the OpenAI key.
func (c *Config) Validate(layers model.LayerSet) error {
	var problems []string

	needAnthropic := false
	for _, l := range layers {
		if l.Protocol == model.ProtocolMessages {
			needAnthropic = true
		}
	}
	if c.OpenAI.Key == "" {
		problems = append(problems, "openai.key is required (DOCINTEL_OPENAI_KEY)")
	}
	if needAnthropic && c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required by a messages layer (DOCINTEL_ANTHROPIC_KEY)")
	}

	if c.Pipeline.FallbackModel == "" {
		problems = append(problems, "pipeline.fallback_model is required")
	}
	if c.Pipeline.DocumentCharLimit <= 0 {
		problems = append(problems, "pipeline.document_char_limit must be positive")
	}
	if c.Pipeline.ContextCharLimit <= 0 {
		problems = append(problems, "pipeline.context_char_limit must be positive")
	}
	if c.Pipeline.CallTimeoutSecs <= 0 {
		problems = append(problems, "pipeline.call_timeout_secs must be positive")
	}
	if c.Pipeline.LayerDelayMs < 0 {
		problems = append(problems, "pipeline.layer_delay_ms must not be negative")
	}
	if c.Batch.MaxConcurrentDocuments < 1 || c.Batch.MaxConcurrentDocuments > 50 {
		problems = append(problems, "batch.max_concurrent_documents must be between 1 and 50")
	}
	if c.Pricing.DefaultModel == "" {
		problems = append(problems, "pricing.default_model is required")
	} else if _, ok := c.Pricing.Table().Models[c.Pricing.DefaultModel]; !ok {
		problems = append(problems, "pricing.default_model "+c.Pricing.DefaultModel+" has no pricing row")
	}
	for _, row := range c.Pricing.Models {
		if row.Input < 0 || row.Output < 0 {
			problems = append(problems, "pricing for "+row.Model+" must not be negative")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateServe checks the settings needed by the HTTP server.
func (c *Config) ValidateServe() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	return nil
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
