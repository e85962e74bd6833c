package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wilhelmagren/finq/internal/util"
)

// Load reads a YAML config file and expands ${VAR} environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.DataDir == "" {
		cfg.DataDir, err = util.DefaultDataPath()
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default is the configuration used when no config file is given. The
// dataset universe must then come from flags or the request.
func Default() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	var err error
	cfg.DataDir, err = util.DefaultDataPath()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads and validates the config at path, or falls back to
// Default when no path is given.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	return LoadAndValidate(path)
}

func (c Config) Validate() error {
	if len(c.Dataset.Names) > 0 && len(c.Dataset.Names) != len(c.Dataset.Symbols) {
		return fmt.Errorf("dataset has %d names for %d symbols", len(c.Dataset.Names), len(c.Dataset.Symbols))
	}
	if s := c.Optimize.RiskFreeRateSource; s != "" && s != "treasury" {
		return fmt.Errorf("unknown risk free rate source %q", s)
	}
	if c.Optimize.LowerBound > c.Optimize.UpperBound {
		return fmt.Errorf("optimize.lower_bound %f above optimize.upper_bound %f", c.Optimize.LowerBound, c.Optimize.UpperBound)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
