package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	AI        AIConfig        `yaml:"ai"`
	SCM       SCMConfig       `yaml:"scm"`
	Cache     CacheConfig     `yaml:"cache"`
	Retry     RetryConfig     `yaml:"retry"`
	Summary   SummaryConfig   `yaml:"summary"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// AIConfig configures the structured-output provider.
type AIConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	FastModel      string `yaml:"fast_model"`
	QualityModel   string `yaml:"quality_model"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-call provider timeout.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SCMConfig configures best-effort source-control diff fetches.
type SCMConfig struct {
	BaseURL       string `yaml:"base_url"`
	Token         string `yaml:"token"`
	MaxPatchBytes int    `yaml:"max_patch_bytes"`
}

type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// TTL returns how long cached generation results stay valid.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

type RetryConfig struct {
	DelayMillis int `yaml:"delay_millis"`
}

// Delay returns the fixed pause before the single transient retry.
func (c RetryConfig) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

type SummaryConfig struct {
	WriteIntervalMillis int `yaml:"write_interval_millis"`
}

// WriteInterval returns the minimum gap between streaming partial writes.
func (c SummaryConfig) WriteInterval() time.Duration {
	return time.Duration(c.WriteIntervalMillis) * time.Millisecond
}

type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "chronicle.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		AI: AIConfig{
			BaseURL:        "https://api.openai.com/v1",
			FastModel:      "gpt-4o-mini",
			QualityModel:   "gpt-4o",
			MaxTokens:      2048,
			TimeoutSeconds: 30,
		},
		SCM: SCMConfig{
			BaseURL:       "https://api.github.com",
			MaxPatchBytes: 4096,
		},
		Cache: CacheConfig{
			TTLMinutes: 24 * 60,
		},
		Retry: RetryConfig{
			DelayMillis: 2000,
		},
		Summary: SummaryConfig{
			WriteIntervalMillis: 500,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
	}

	if path := os.Getenv("CHRONICLE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("CHRONICLE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("CHRONICLE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CHRONICLE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("CHRONICLE_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("CHRONICLE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if baseURL := os.Getenv("CHRONICLE_AI_BASE_URL"); baseURL != "" {
		cfg.AI.BaseURL = baseURL
	}
	if apiKey := os.Getenv("CHRONICLE_AI_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if model := os.Getenv("CHRONICLE_AI_FAST_MODEL"); model != "" {
		cfg.AI.FastModel = model
	}
	if model := os.Getenv("CHRONICLE_AI_QUALITY_MODEL"); model != "" {
		cfg.AI.QualityModel = model
	}
	if token := os.Getenv("CHRONICLE_SCM_TOKEN"); token != "" {
		cfg.SCM.Token = token
	}
	if ttlStr := os.Getenv("CHRONICLE_CACHE_TTL_MINUTES"); ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CHRONICLE_CACHE_TTL_MINUTES: %w", err)
		}
		cfg.Cache.TTLMinutes = ttl
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
