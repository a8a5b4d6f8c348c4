package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Refresh   RefreshConfig   `yaml:"refresh" mapstructure:"refresh"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings for the generative source.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// RefreshConfig configures the periodic refresh scheduler.
type RefreshConfig struct {
	States         []string `yaml:"states" mapstructure:"states"`
	PeriodHours    int      `yaml:"period_hours" mapstructure:"period_hours"`
	KindDelaySecs  int      `yaml:"kind_delay_secs" mapstructure:"kind_delay_secs"`
	StateDelaySecs int      `yaml:"state_delay_secs" mapstructure:"state_delay_secs"`
}

// Period returns the refresh cadence as a duration.
func (c RefreshConfig) Period() time.Duration {
	return time.Duration(c.PeriodHours) * time.Hour
}

// KindDelay returns the pause between data kinds within one state.
func (c RefreshConfig) KindDelay() time.Duration {
	return time.Duration(c.KindDelaySecs) * time.Second
}

// StateDelay returns the pause between states within one cycle.
func (c RefreshConfig) StateDelay() time.Duration {
	return time.Duration(c.StateDelaySecs) * time.Second
}

// FetchConfig configures the polite HTTP fetcher.
type FetchConfig struct {
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelaySecs int     `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	RequestsPerS   float64 `yaml:"requests_per_s" mapstructure:"requests_per_s"`
	MaxRedirects   int     `yaml:"max_redirects" mapstructure:"max_redirects"`
}

// GeocodeConfig configures the Nominatim client.
type GeocodeConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerS float64 `yaml:"requests_per_s" mapstructure:"requests_per_s"`
	EmptyRetries int     `yaml:"empty_retries" mapstructure:"empty_retries"`
}

// SourcesConfig holds the upstream directory endpoints.
type SourcesConfig struct {
	MarkupBaseURL    string `yaml:"markup_base_url" mapstructure:"markup_base_url"`
	DirectoryBaseURL string `yaml:"directory_base_url" mapstructure:"directory_base_url"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	// Optional .env for local development; real environments set vars
	// directly.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CAREATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key gets one, even when it is empty: viper's
	// AutomaticEnv only surfaces env vars for keys it already knows
	// about, so a key without a default would never pick up its
	// CAREATLAS_* override.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "careatlas.db")
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("refresh.states", []string{"IN", "IL"})
	v.SetDefault("refresh.period_hours", 6)
	v.SetDefault("refresh.kind_delay_secs", 5)
	v.SetDefault("refresh.state_delay_secs", 10)
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.retry_delay_secs", 2)
	v.SetDefault("fetch.requests_per_s", 1)
	v.SetDefault("fetch.max_redirects", 5)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.requests_per_s", 1)
	v.SetDefault("geocode.empty_retries", 3)
	v.SetDefault("sources.markup_base_url", "")
	v.SetDefault("sources.directory_base_url", "")
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

// Validate checks the configuration needed for the given run mode and
// reports every problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "refresh":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if len(c.Refresh.States) == 0 {
			problems = append(problems, "refresh.states must name at least one state")
		}
		if c.Refresh.PeriodHours <= 0 {
			problems = append(problems, "refresh.period_hours must be > 0")
		}
	case "generate":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "serve":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
