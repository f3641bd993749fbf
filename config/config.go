package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Openai struct {
		ApiKey string `yaml:"apiKey"`
	} `yaml:"openai"`

	Anthropic struct {
		ApiKey string `yaml:"apiKey"`
	} `yaml:"anthropic"`

	Grok struct {
		ApiKey string `yaml:"apiKey"`
	} `yaml:"grok"`

	Gemini struct {
		ApiKey string `yaml:"apiKey"`
	} `yaml:"gemini"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
}

const defaultPort = 5123

// LoadConfig reads the configuration file and applies environment overrides.
// The file is optional; a missing file yields an env-only configuration.
// Missing API keys are not an error here: a provider without credentials
// fails at call time, not at startup.
func LoadConfig(path string) (*Config, error) {
	// .env is loaded first so its values participate in the overrides below.
	godotenv.Load()

	var cfg Config
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Openai.ApiKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Anthropic.ApiKey = v
	}
	if v := os.Getenv("GROK_API_KEY"); v != "" {
		cfg.Grok.ApiKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.ApiKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
}
