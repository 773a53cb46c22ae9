// Package config loads the application configuration from defaults, a .env file, a YAML file
// and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bellavista/internal/matching"
)

// DefaultPath is the config file read when no path is given. It may be missing.
const DefaultPath = "configs/config.yaml"

// Config represents the application configuration
type Config struct {
	LogLevel    string          `yaml:"log_level"`
	CatalogFile string          `yaml:"catalog_file"`
	Server      ServerConfig    `yaml:"server"`
	Assistant   AssistantConfig `yaml:"assistant"`
	Matching    MatchingConfig  `yaml:"matching"`
	Orders      OrdersConfig    `yaml:"orders"`
	Chatbot     ChatbotConfig   `yaml:"chatbot"`
}

// ServerConfig configures the storefront API
type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metrics_port"`
}

// AssistantConfig configures the AI service gateway and the session controllers
type AssistantConfig struct {
	ServiceURL     string        `yaml:"service_url"`
	Timeout        time.Duration `yaml:"timeout"`
	HealthInterval time.Duration `yaml:"health_interval"`
	DelayScale     float64       `yaml:"delay_scale"`
}

// MatchingConfig holds the matcher thresholds
type MatchingConfig struct {
	Thresholds matching.Thresholds `yaml:"thresholds"`
}

// OrdersConfig configures pricing, the receipt ledger and order events
type OrdersConfig struct {
	TaxRate        float64  `yaml:"tax_rate"`
	SyntheticPrice float64  `yaml:"synthetic_price"`
	EstimatedTime  string   `yaml:"estimated_time"`
	DatabaseDSN    string   `yaml:"database_dsn"`
	KafkaBrokers   []string `yaml:"kafka_brokers"`
	KafkaTopic     string   `yaml:"kafka_topic"`
}

// ChatbotConfig configures the reference AI chatbot service
type ChatbotConfig struct {
	Port         int           `yaml:"port"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	Token        string        `yaml:"token"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	HistoryLimit int           `yaml:"history_limit"`
	MenuCacheTTL time.Duration `yaml:"menu_cache_ttl"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:        8080,
			MetricsPort: 9090,
		},
		Assistant: AssistantConfig{
			ServiceURL:     "http://localhost:5000",
			Timeout:        30 * time.Second,
			HealthInterval: 30 * time.Second,
			DelayScale:     1,
		},
		Matching: MatchingConfig{Thresholds: matching.DefaultThresholds},
		Orders: OrdersConfig{
			TaxRate:        0.08,
			SyntheticPrice: 12.99,
			EstimatedTime:  "15-20 minutes",
			DatabaseDSN:    ":memory:",
			KafkaTopic:     "bellavista.orders",
		},
		Chatbot: ChatbotConfig{
			Port:         5000,
			Model:        "gpt-4o-mini",
			BaseURL:      "https://models.inference.ai.azure.com",
			Temperature:  0.2,
			MaxTokens:    800,
			HistoryLimit: 20,
			MenuCacheTTL: 5 * time.Minute,
		},
	}
}

// Load builds the configuration. A missing file at DefaultPath, or an empty path, is not an
// error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("BELLAVISTA_LOG_LEVEL", &c.LogLevel)
	str("BELLAVISTA_CATALOG_FILE", &c.CatalogFile)
	num("BELLAVISTA_PORT", &c.Server.Port)
	num("BELLAVISTA_METRICS_PORT", &c.Server.MetricsPort)
	str("BELLAVISTA_AI_SERVICE_URL", &c.Assistant.ServiceURL)
	duration("BELLAVISTA_AI_TIMEOUT", &c.Assistant.Timeout)
	duration("BELLAVISTA_HEALTH_INTERVAL", &c.Assistant.HealthInterval)
	float("BELLAVISTA_DELAY_SCALE", &c.Assistant.DelayScale)
	float("BELLAVISTA_MATCH_THRESHOLD", &c.Matching.Thresholds.Match)
	float("BELLAVISTA_CONFIDENT_THRESHOLD", &c.Matching.Thresholds.Confident)
	float("BELLAVISTA_LOOSE_THRESHOLD", &c.Matching.Thresholds.Loose)
	float("BELLAVISTA_TAX_RATE", &c.Orders.TaxRate)
	str("BELLAVISTA_DATABASE_DSN", &c.Orders.DatabaseDSN)
	str("BELLAVISTA_KAFKA_TOPIC", &c.Orders.KafkaTopic)
	if v, ok := lookup("BELLAVISTA_KAFKA_BROKERS"); ok && v != "" {
		c.Orders.KafkaBrokers = splitList(v)
	}
	num("BELLAVISTA_CHATBOT_PORT", &c.Chatbot.Port)

	str("OPENAI_MODEL", &c.Chatbot.Model)
	str("OPENAI_BASE_URL", &c.Chatbot.BaseURL)
	str("GITHUB_TOKEN", &c.Chatbot.Token)
	str("OPENAI_API_KEY", &c.Chatbot.Token)

	return errors.Join(errs...)
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	var errs []error
	for name, port := range map[string]int{
		"server.port":         c.Server.Port,
		"server.metrics_port": c.Server.MetricsPort,
		"chatbot.port":        c.Chatbot.Port,
	} {
		if port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s %d out of range", name, port))
		}
	}
	if c.Assistant.Timeout <= 0 {
		errs = append(errs, errors.New("assistant.timeout must be positive"))
	}
	if c.Assistant.DelayScale < 0 {
		errs = append(errs, errors.New("assistant.delay_scale must not be negative"))
	}
	t := c.Matching.Thresholds
	for name, v := range map[string]float64{"match": t.Match, "confident": t.Confident, "loose": t.Loose} {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Errorf("matching.thresholds.%s must be in (0, 1]", name))
		}
	}
	if c.Orders.TaxRate < 0 || c.Orders.TaxRate >= 1 {
		errs = append(errs, errors.New("orders.tax_rate must be in [0, 1)"))
	}
	if c.Orders.SyntheticPrice < 0 {
		errs = append(errs, errors.New("orders.synthetic_price must not be negative"))
	}
	if c.Chatbot.HistoryLimit < 1 {
		errs = append(errs, errors.New("chatbot.history_limit must be at least 1"))
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
