package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/smallnest/agentgraph/log"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvTavilyKey = "TAVILY_API_KEY"
	EnvBraveKey  = "BRAVE_API_KEY"
	EnvLogLevel  = "AGENTGRAPH_LOG_LEVEL"
	EnvStoreDSN  = "AGENTGRAPH_STORE_DSN"
)

// Config is the runtime configuration of agentgraph programs.
type Config struct {
	LogLevel string       `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error none"`
	Store    StoreConfig  `json:"store" yaml:"store"`
	Model    ModelConfig  `json:"model" yaml:"model"`
	Search   SearchConfig `json:"search" yaml:"search"`
	Graph    GraphConfig  `json:"graph" yaml:"graph"`
}

// StoreConfig selects the checkpoint backend.
type StoreConfig struct {
	// Backend is one of memory, file, sqlite, postgres or redis.
	Backend string `json:"backend" yaml:"backend" validate:"required,oneof=memory file sqlite postgres redis"`

	// DSN is the directory for file, the database path for sqlite, the
	// connection string for postgres and the address or redis:// URL for redis.
	DSN string `json:"dsn" yaml:"dsn" validate:"required_if=Backend file,required_if=Backend postgres,required_if=Backend redis"`

	// Table is the sqlite or postgres table name.
	Table string `json:"table" yaml:"table" validate:"omitempty,identifier"`

	// Prefix is the redis key prefix.
	Prefix string `json:"prefix" yaml:"prefix"`

	// TTL expires redis checkpoints, e.g. "24h".
	TTL string `json:"ttl" yaml:"ttl"`
}

// ModelConfig selects the chat model.
type ModelConfig struct {
	Provider    string  `json:"provider" yaml:"provider" validate:"omitempty,oneof=openai"`
	Name        string  `json:"name" yaml:"name"`
	BaseURL     string  `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey      string  `json:"api_key" yaml:"api_key"`
	Temperature float32 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
}

// SearchConfig selects the web search tool.
type SearchConfig struct {
	Provider     string `json:"provider" yaml:"provider" validate:"omitempty,oneof=tavily brave"`
	MaxResults   int    `json:"max_results" yaml:"max_results" validate:"gte=0,lte=20"`
	TavilyAPIKey string `json:"tavily_api_key" yaml:"tavily_api_key"`
	BraveAPIKey  string `json:"brave_api_key" yaml:"brave_api_key"`
}

// GraphConfig holds executor limits.
type GraphConfig struct {
	RecursionLimit int `json:"recursion_limit" yaml:"recursion_limit" validate:"gte=1"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Store:    StoreConfig{Backend: "memory"},
		Model:    ModelConfig{Provider: "openai"},
		Search:   SearchConfig{Provider: "tavily", MaxResults: 2},
		Graph:    GraphConfig{RecursionLimit: 25},
	}
}

var (
	validate     = newValidator()
	identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Table names are interpolated into SQL.
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierRe.MatchString(fl.Field().String())
	})
	return v
}

// Load reads the file at path over the defaults, applies environment overrides
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile decodes a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension: %s", ext)
	}
	return nil
}

// LoadEnv loads .env files into the process environment without overriding
// variables already set. Without arguments it loads ./.env if present.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvOpenAIKey); ok && v != "" {
		c.Model.APIKey = v
	}
	if v, ok := lookup(EnvTavilyKey); ok && v != "" {
		c.Search.TavilyAPIKey = v
	}
	if v, ok := lookup(EnvBraveKey); ok && v != "" {
		c.Search.BraveAPIKey = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup(EnvStoreDSN); ok && v != "" {
		c.Store.DSN = v
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds the configured logger.
func (c *Config) Logger() (log.Logger, error) {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return log.NewDefaultLogger(level), nil
}
