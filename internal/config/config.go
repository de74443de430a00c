package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Mixrank   MixrankConfig   `yaml:"mixrank" mapstructure:"mixrank"`
	Exa       ExaConfig       `yaml:"exa" mapstructure:"exa"`
	IPAPI     IPAPIConfig     `yaml:"ipapi" mapstructure:"ipapi"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MixrankConfig holds identity-data provider settings.
type MixrankConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	MaxAgeSecs  int     `yaml:"max_age_secs" mapstructure:"max_age_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ExaConfig holds search provider settings.
type ExaConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	NumResults  int    `yaml:"num_results" mapstructure:"num_results"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// IPAPIConfig holds IP geolocation settings.
type IPAPIConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	ScoringModel string `yaml:"scoring_model" mapstructure:"scoring_model"`
	TagModel     string `yaml:"tag_model" mapstructure:"tag_model"`
}

// ResolveConfig configures candidate disambiguation.
type ResolveConfig struct {
	MaxCandidates  int      `yaml:"max_candidates" mapstructure:"max_candidates"`
	SearchResults  int      `yaml:"search_results" mapstructure:"search_results"`
	IncludeDomains []string `yaml:"include_domains" mapstructure:"include_domains"`
}

// EnrichConfig configures the batch orchestrator.
type EnrichConfig struct {
	ChunkSize      int `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkPauseSecs int `yaml:"chunk_pause_secs" mapstructure:"chunk_pause_secs"`
	Limit          int `yaml:"limit" mapstructure:"limit"`
}

// ServerConfig configures the JSON API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("CONTACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("mixrank.base_url", "https://api.mixrank.com")
	v.SetDefault("mixrank.max_age_secs", 1192000)
	v.SetDefault("mixrank.rate_per_sec", 2.0)
	v.SetDefault("mixrank.timeout_secs", 20)
	v.SetDefault("exa.base_url", "https://api.exa.ai")
	v.SetDefault("exa.num_results", 8)
	v.SetDefault("exa.timeout_secs", 10)
	v.SetDefault("ipapi.base_url", "http://ip-api.com")
	v.SetDefault("ipapi.timeout_secs", 5)
	v.SetDefault("anthropic.scoring_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.tag_model", "claude-haiku-4-5-20251001")
	v.SetDefault("resolve.max_candidates", 5)
	v.SetDefault("resolve.search_results", 10)
	v.SetDefault("resolve.include_domains", []string{
		"linkedin.com", "crunchbase.com", "angel.co", "twitter.com",
	})
	v.SetDefault("enrich.chunk_size", 5)
	v.SetDefault("enrich.chunk_pause_secs", 2)
	v.SetDefault("enrich.limit", 0)

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

// Validate checks the fields required for the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireDB := func() {
		if c.Store.DatabaseURL == "" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "enrich":
		requireDB()
		if c.Mixrank.Key == "" {
			problems = append(problems, "mixrank.key is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "serve":
		requireDB()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Exa.Key == "" {
			problems = append(problems, "exa.key is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "store":
		requireDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Resolve.MaxCandidates < 1 {
		problems = append(problems, "resolve.max_candidates must be >= 1")
	}
	if c.Enrich.ChunkSize < 1 {
		problems = append(problems, "enrich.chunk_size must be >= 1")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
