// Package config captures the tunable runtime settings for the service.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the YAML file leaves a field unset.
const (
	DefaultModel       = "glm-4.6"
	DefaultTitleModel  = "glm-4.5-air"
	DefaultBaseURL     = "https://api.z.ai/api/coding/paas/v4"
	DefaultListenAddr  = "127.0.0.1:8484"
	DefaultDatabase    = "atelier.db"
	DefaultMaxTurns    = 20
	DefaultTemperature = 0.7
)

type Config struct {
	Provider   string `yaml:"provider"` // "openai" (any OpenAI-compatible endpoint) or "mock"
	Model      string `yaml:"model"`
	TitleModel string `yaml:"title_model"`
	BaseURL    string `yaml:"base_url"`
	// Temperature is a pointer so an explicit 0 survives default backfill.
	Temperature           *float64 `yaml:"temperature"`
	MaxTurns              int      `yaml:"max_turns"`
	TitleMaxTokens        int      `yaml:"title_max_tokens"`
	RequestTimeoutSeconds int      `yaml:"request_timeout_seconds"`
	ScrapeTimeoutSeconds  int      `yaml:"scrape_timeout_seconds"`
	DatabasePath          string   `yaml:"database_path"`
	ListenAddr            string   `yaml:"listen_addr"`
	LogPath               string   `yaml:"log_path"`
	LogJSON               bool     `yaml:"log_json"`
	SystemPrompt          string   `yaml:"system_prompt"` // appended to the built-in agent prompt
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML config at path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.TitleModel == "" {
		c.TitleModel = DefaultTitleModel
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Temperature == nil {
		temp := DefaultTemperature
		c.Temperature = &temp
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	if c.TitleMaxTokens <= 0 {
		c.TitleMaxTokens = 64
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 120
	}
	if c.ScrapeTimeoutSeconds <= 0 {
		c.ScrapeTimeoutSeconds = 30
	}
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabase
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
}
