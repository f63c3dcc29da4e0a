package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	// Server configuration
	Addr string `yaml:"addr"`

	// Storage
	GraphURL   string `yaml:"graph_url"`   // memory:// or falkordb://host:port/graph
	IndexStore string `yaml:"index_store"` // file://dir, memory://, redis://, sqlite://path, postgres://...

	// LLM configuration
	LLMProvider string `yaml:"llm_provider"` // openai, groq or ollama
	LLMModel    string `yaml:"llm_model"`
	LLMBaseURL  string `yaml:"llm_base_url"`
	APIKey      string `yaml:"-"`

	// Embeddings
	EmbeddingProvider string `yaml:"embedding_provider"` // openai, ollama or mock
	EmbeddingModel    string `yaml:"embedding_model"`

	// Documents for semantic retrieval; empty disables it.
	DocumentsDir string `yaml:"documents_dir"`

	RefreshSchedule string        `yaml:"refresh_schedule"`
	MinScore        float64       `yaml:"min_score"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	LLMTimeout      time.Duration `yaml:"llm_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Addr:              ":8000",
		GraphURL:          "falkordb://localhost:6379/kg",
		IndexStore:        "file://./data",
		LLMProvider:       "groq",
		LLMModel:          "llama-3.3-70b-versatile",
		EmbeddingProvider: "openai",
		EmbeddingModel:    "text-embedding-3-small",
		QueryTimeout:      10 * time.Second,
		LLMTimeout:        60 * time.Second,
		LogLevel:          "info",
	}
}

// LoadConfig layers defaults, the optional YAML file at path, a .env file in
// the working directory and the process environment, later layers winning.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.Addr = getEnv("KGQA_ADDR", cfg.Addr)
	cfg.GraphURL = getEnv("KGQA_GRAPH_URL", cfg.GraphURL)
	cfg.IndexStore = getEnv("KGQA_INDEX_STORE", cfg.IndexStore)
	cfg.LLMProvider = strings.ToLower(getEnv("KGQA_LLM_PROVIDER", cfg.LLMProvider))
	cfg.LLMModel = getEnv("KGQA_LLM_MODEL", cfg.LLMModel)
	cfg.LLMBaseURL = getEnv("KGQA_LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.EmbeddingProvider = strings.ToLower(getEnv("KGQA_EMBEDDING_PROVIDER", cfg.EmbeddingProvider))
	cfg.EmbeddingModel = getEnv("KGQA_EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.DocumentsDir = getEnv("KGQA_DOCUMENTS_DIR", cfg.DocumentsDir)
	cfg.RefreshSchedule = getEnv("KGQA_REFRESH_SCHEDULE", cfg.RefreshSchedule)
	cfg.LogLevel = getEnv("KGQA_LOG_LEVEL", cfg.LogLevel)

	switch cfg.LLMProvider {
	case "groq":
		cfg.APIKey = os.Getenv("GROQ_API_KEY")
	default:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	var err error
	if cfg.QueryTimeout, err = getEnvDuration("KGQA_QUERY_TIMEOUT", cfg.QueryTimeout); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = getEnvDuration("KGQA_LLM_TIMEOUT", cfg.LLMTimeout); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateConfig validates that required configuration is present.
func ValidateConfig(cfg *Config) error {
	switch cfg.LLMProvider {
	case "openai", "groq":
		if cfg.APIKey == "" {
			return fmt.Errorf("an API key is required for the %s provider", cfg.LLMProvider)
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}

	switch cfg.EmbeddingProvider {
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return errors.New("OPENAI_API_KEY is required for openai embeddings")
		}
	case "ollama", "mock":
	default:
		return fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}

	if cfg.GraphURL == "" {
		return errors.New("graph url is required")
	}
	if cfg.IndexStore == "" {
		return errors.New("index store is required")
	}
	if cfg.QueryTimeout < 0 || cfg.LLMTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
