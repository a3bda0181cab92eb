package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:genewire.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Schedule struct {
		DigestCron    string `yaml:"digest_cron" json:"digest_cron" jsonschema:"default=0 7 * * *,description=Cron expression for the daily digest run"`
		CleanupCron   string `yaml:"cleanup_cron" json:"cleanup_cron" jsonschema:"default=30 3 * * *,description=Cron expression for the cleanup job"`
		RetentionDays int    `yaml:"retention_days" json:"retention_days" jsonschema:"default=90,description=Days to keep articles and abandoned comparison sessions"`
	} `yaml:"schedule" json:"schedule" jsonschema:"description=Scheduler configuration"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for summary generation"`

	Search SearchConfig `yaml:"search" json:"search" jsonschema:"description=Article search configuration"`

	Email EmailConfig `yaml:"email" json:"email" jsonschema:"description=Digest email delivery configuration"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Full-text content extraction configuration"`
}

// ComparisonConfig holds settings for the advanced model used in A/B comparisons
type ComparisonConfig struct {
	Model       string  `yaml:"model" json:"model" jsonschema:"default=gpt-4o,description=Advanced model name used for A/B comparison summaries"`
	Temperature float64 `yaml:"temperature" json:"temperature" jsonschema:"default=0.5,description=Temperature for advanced summaries"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=300,description=Maximum tokens for advanced summaries"`
}

// LLMConfig holds LLM configuration for summary generation
type LLMConfig struct {
	Endpoint    string           `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint (default api.openai.com)"`
	APIKey      string           `yaml:"api_key" json:"api_key" jsonschema:"required,description=API key (can use environment variable)"`
	Model       string           `yaml:"model" json:"model" jsonschema:"default=gpt-4o-mini,description=Production model used for digest summaries"`
	Temperature float64          `yaml:"temperature" json:"temperature" jsonschema:"default=0.7,description=Temperature for response generation"`
	MaxTokens   int              `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=1000,description=Maximum tokens in response"`
	Timeout     time.Duration    `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	Comparison  ComparisonConfig `yaml:"comparison" json:"comparison" jsonschema:"description=Advanced model settings for A/B comparisons"`
}

// SearchConfig holds article search settings
type SearchConfig struct {
	Keywords           []string      `yaml:"keywords" json:"keywords" jsonschema:"description=Keywords combined into site-restricted search queries"`
	MaxArticles        int           `yaml:"max_articles" json:"max_articles" jsonschema:"default=10,description=Maximum articles kept after ranking"`
	RelevanceThreshold float64       `yaml:"relevance_threshold" json:"relevance_threshold" jsonschema:"default=6.0,minimum=0,maximum=10,description=Minimum relevance score to keep an article"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Per-site fetch timeout"`
	GoogleAPIKey       string        `yaml:"google_api_key" json:"google_api_key" jsonschema:"description=Google Custom Search API key for generic sites"`
	GoogleEngineID     string        `yaml:"google_engine_id" json:"google_engine_id" jsonschema:"description=Google Custom Search engine ID"`
}

// EmailConfig holds SMTP delivery settings
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable digest email delivery"`
	Host     string `yaml:"host" json:"host" jsonschema:"description=SMTP host"`
	Port     int    `yaml:"port" json:"port" jsonschema:"default=587,description=SMTP port"`
	Username string `yaml:"username" json:"username" jsonschema:"description=SMTP username"`
	Password string `yaml:"password" json:"password" jsonschema:"description=SMTP password (can use environment variable)"`
	From     string `yaml:"from" json:"from" jsonschema:"description=From address for digest emails"`
	BaseURL  string `yaml:"base_url" json:"base_url" jsonschema:"description=Public base URL used in feedback links"`
}

// ExtractionConfig holds full-text content extraction settings
type ExtractionConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled" jsonschema:"default=true,description=Enable full-text extraction for summary generation"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Extraction timeout per article"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Genewire/1.0,description=User agent for HTTP requests"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum text length to consider valid"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:genewire.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for schedule
	if cfg.Schedule.DigestCron == "" {
		cfg.Schedule.DigestCron = "0 7 * * *"
	}
	if cfg.Schedule.CleanupCron == "" {
		cfg.Schedule.CleanupCron = "30 3 * * *"
	}
	if cfg.Schedule.RetentionDays == 0 {
		cfg.Schedule.RetentionDays = 90
	}

	// set defaults for LLM
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.Comparison.Model == "" {
		cfg.LLM.Comparison.Model = "gpt-4o"
	}
	if cfg.LLM.Comparison.Temperature == 0 {
		cfg.LLM.Comparison.Temperature = 0.5
	}
	if cfg.LLM.Comparison.MaxTokens == 0 {
		cfg.LLM.Comparison.MaxTokens = 300
	}

	// set defaults for search
	if len(cfg.Search.Keywords) == 0 {
		cfg.Search.Keywords = []string{"synthetic biology", "CRISPR", "gene editing"}
	}
	if cfg.Search.MaxArticles == 0 {
		cfg.Search.MaxArticles = 10
	}
	if cfg.Search.RelevanceThreshold == 0 {
		cfg.Search.RelevanceThreshold = 6.0
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 15 * time.Second
	}

	// set defaults for email
	if cfg.Email.Port == 0 {
		cfg.Email.Port = 587
	}

	// set defaults for extraction
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 15 * time.Second
	}
	if cfg.Extraction.UserAgent == "" {
		cfg.Extraction.UserAgent = "Genewire/1.0"
	}
	if cfg.Extraction.MinTextLength == 0 {
		cfg.Extraction.MinTextLength = 100
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {

	// validate LLM config
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if cfg.LLM.Comparison.Temperature < 0 || cfg.LLM.Comparison.Temperature > 2 {
		return fmt.Errorf("llm.comparison.temperature must be between 0 and 2")
	}

	// validate search config
	if cfg.Search.RelevanceThreshold < 0 || cfg.Search.RelevanceThreshold > 10 {
		return fmt.Errorf("search.relevance_threshold must be between 0 and 10")
	}
	if cfg.Search.MaxArticles < 1 {
		return fmt.Errorf("search.max_articles must be at least 1")
	}
	if cfg.Search.Timeout < time.Second {
		return fmt.Errorf("search timeout must be at least 1 second")
	}

	// validate email config
	if cfg.Email.Enabled {
		if cfg.Email.Host == "" {
			return fmt.Errorf("email.host is required when email is enabled")
		}
		if cfg.Email.From == "" {
			return fmt.Errorf("email.from is required when email is enabled")
		}
	}

	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetLLMConfig returns LLM configuration
func (c *Config) GetLLMConfig() LLMConfig {
	return c.LLM
}

// GetSearchConfig returns article search configuration
func (c *Config) GetSearchConfig() SearchConfig {
	return c.Search
}

// GetEmailConfig returns email delivery configuration
func (c *Config) GetEmailConfig() EmailConfig {
	return c.Email
}

// GetExtractionConfig returns content extraction configuration
func (c *Config) GetExtractionConfig() ExtractionConfig {
	return c.Extraction
}
