package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the notex pipeline
type Config struct {
	// Converter selection and endpoint settings
	Converter ConverterConfig `yaml:"converter" json:"converter"`

	// PDF rendering settings
	PDF PDFConfig `yaml:"pdf" json:"pdf"`

	// Rate limiting configuration for the conversion endpoint
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry configuration for failed conversion calls
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Pipeline behaviour
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ConverterConfig selects and configures the image-to-LaTeX converter
type ConverterConfig struct {
	// Type is the converter implementation: "openrouter" or "dummy"
	Type      string        `yaml:"type" json:"type"`
	Model     string        `yaml:"model" json:"model"`
	Endpoint  string        `yaml:"endpoint" json:"endpoint"`
	APIKeyEnv string        `yaml:"api_key_env" json:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	Prompt    string        `yaml:"prompt" json:"prompt"`
}

// PDFConfig holds page rendering settings
type PDFConfig struct {
	DPI int `yaml:"dpi" json:"dpi"`
}

// RateLimitConfig holds rate limit settings. Mode selects the algorithm:
// "window" spreads calls smoothly over the trailing window, "bucket" allows
// bursts up to the limit with whole-window refill.
type RateLimitConfig struct {
	Mode        string        `yaml:"mode" json:"mode"`
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
	Window      time.Duration `yaml:"window" json:"window"`
}

// RetryConfig holds retry and backoff settings
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay" json:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	JitterFactor      float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// PipelineConfig holds scheduler behaviour settings
type PipelineConfig struct {
	Parallelism   int    `yaml:"parallelism" json:"parallelism"`
	SectionPrefix string `yaml:"section_prefix" json:"section_prefix"`
	DocTitle      string `yaml:"doc_title" json:"doc_title"`
	CreateMainDoc bool   `yaml:"create_main_doc" json:"create_main_doc"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	SaveImages    bool   `yaml:"save_images" json:"save_images"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Converter: ConverterConfig{
			Type:      "dummy",
			Model:     "google/gemini-2.0-flash-exp:free",
			Endpoint:  "https://openrouter.ai/api/v1/chat/completions",
			APIKeyEnv: "NOTEX_API_KEY",
			Timeout:   120 * time.Second,
		},
		PDF: PDFConfig{
			DPI: 300,
		},
		RateLimit: RateLimitConfig{
			Mode:        "window",
			MaxRequests: 2,
			Window:      time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			BaseDelay:         5 * time.Second,
			MaxDelay:          60 * time.Second,
			BackoffMultiplier: 2.0,
			JitterFactor:      0.1,
		},
		Pipeline: PipelineConfig{
			Parallelism:   1,
			SectionPrefix: "notes",
			DocTitle:      "Converted Notes",
			CreateMainDoc: true,
		},
		Output: OutputConfig{
			BaseDirectory: "./output",
			SaveImages:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if converterType := os.Getenv("NOTEX_CONVERTER"); converterType != "" {
		c.Converter.Type = converterType
	}
	if model := os.Getenv("NOTEX_MODEL"); model != "" {
		c.Converter.Model = model
	}
	if endpoint := os.Getenv("NOTEX_ENDPOINT"); endpoint != "" {
		c.Converter.Endpoint = endpoint
	}

	if mode := os.Getenv("NOTEX_RATE_MODE"); mode != "" {
		c.RateLimit.Mode = mode
	}
	if rpm := os.Getenv("NOTEX_MAX_REQUESTS"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.MaxRequests = val
		}
	}

	if parallel := os.Getenv("NOTEX_PARALLELISM"); parallel != "" {
		var val int
		fmt.Sscanf(parallel, "%d", &val)
		if val > 0 {
			c.Pipeline.Parallelism = val
		}
	}

	if outputDir := os.Getenv("NOTEX_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}

	if logLevel := os.Getenv("NOTEX_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches common locations for a config file
func (c *Config) findConfigFile() string {
	candidates := []string{
		"notex.yaml",
		"notex.yml",
		filepath.Join("config", "notex.yaml"),
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".config", "notex", "config.yaml"),
			filepath.Join(home, ".notex.yaml"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveToFile writes the configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	switch strings.ToLower(c.Converter.Type) {
	case "openrouter", "dummy":
	default:
		return fmt.Errorf("unknown converter type: %s", c.Converter.Type)
	}

	if c.PDF.DPI <= 0 {
		return errors.New("pdf.dpi must be positive")
	}
	switch strings.ToLower(c.RateLimit.Mode) {
	case "", "window", "bucket":
	default:
		return fmt.Errorf("unknown rate_limit.mode: %s", c.RateLimit.Mode)
	}
	if c.RateLimit.MaxRequests <= 0 {
		return errors.New("rate_limit.max_requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate_limit.window must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be positive")
	}
	if c.Retry.BackoffMultiplier < 1.0 {
		return errors.New("retry.backoff_multiplier must be at least 1.0")
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		return errors.New("retry.jitter_factor must be between 0.0 and 1.0")
	}
	if c.Pipeline.Parallelism <= 0 {
		return errors.New("pipeline.parallelism must be positive")
	}

	return nil
}

// Load builds the effective configuration: defaults, then config file,
// then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
