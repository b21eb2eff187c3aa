package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the CLI's YAML file. Every field can be overridden by a flag.
type Config struct {
	Server struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"server"`

	Generation struct {
		PriorSteps            int     `yaml:"prior_steps"`
		DecoderSteps          int     `yaml:"decoder_steps"`
		GuidanceScale         float64 `yaml:"cgs_scale"`
		ImageNumber           int     `yaml:"image_number"`
		NegativePriorPrompt   string  `yaml:"negative_prior_prompt"`
		NegativeDecoderPrompt string  `yaml:"negative_decoder_prompt"`
	} `yaml:"generation"`

	Poll struct {
		Interval         time.Duration `yaml:"interval"`
		ResultRetries    int           `yaml:"result_retries"`
		ResultRetryDelay time.Duration `yaml:"result_retry_delay"`
	} `yaml:"poll"`

	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`
}

// DefaultConfig mirrors the plugin dialog's initial values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.URL = "http://127.0.0.1:5000"
	cfg.Server.Timeout = 30 * time.Minute
	cfg.Generation.PriorSteps = 20
	cfg.Generation.DecoderSteps = 20
	cfg.Generation.GuidanceScale = 4
	cfg.Generation.ImageNumber = 2
	cfg.Poll.Interval = 100 * time.Millisecond
	cfg.Poll.ResultRetries = 5
	cfg.Poll.ResultRetryDelay = 500 * time.Millisecond
	cfg.Output.Dir = "."
	return cfg
}

// LoadConfig reads path over the defaults. A missing file at the default
// location is not an error.
func LoadConfig(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the server would reject anyway, so the user
// sees the problem before the images are encoded.
func (c *Config) Validate() error {
	switch {
	case c.Server.URL == "":
		return fmt.Errorf("server.url is required")
	case c.Generation.PriorSteps < 0 || c.Generation.DecoderSteps < 0:
		return fmt.Errorf("generation steps must not be negative")
	case c.Generation.ImageNumber < 1:
		return fmt.Errorf("generation.image_number must be at least 1")
	case c.Poll.Interval <= 0:
		return fmt.Errorf("poll.interval must be positive")
	}
	return nil
}
