// Package config loads the simulator configuration from an optional YAML
// file, then applies environment overrides (a .env file is read if present).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/librescoot/tickfsm/flywheel"
)

var (
	// ErrInvalidConfig wraps every validation failure
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the full simulator configuration
type Config struct {
	Period     time.Duration `yaml:"period" env:"TICKFSM_PERIOD"`
	LogLevel   string        `yaml:"log_level" env:"TICKFSM_LOG_LEVEL"`
	LogFormat  string        `yaml:"log_format" env:"TICKFSM_LOG_FORMAT"`
	ListenAddr string        `yaml:"listen_addr" env:"TICKFSM_LISTEN_ADDR"`
	TableTTL   time.Duration `yaml:"table_ttl" env:"TICKFSM_TABLE_TTL"`

	Flywheel flywheel.Config `yaml:"flywheel" envPrefix:"FLYWHEEL_"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Period:     20 * time.Millisecond,
		LogLevel:   "info",
		LogFormat:  "console",
		ListenAddr: ":8080",
		TableTTL:   time.Second,
		Flywheel:   flywheel.DefaultConfig(),
	}
}

// Load reads path (if not empty) over the defaults, then environment
// variables over that, and validates the result
func Load(path string) (Config, error) {
	// Ignore errors - the .env file might not exist and that's ok
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	var errs []error
	if c.Period <= 0 {
		errs = append(errs, fmt.Errorf("period must be positive, got %s", c.Period))
	}
	if c.TableTTL < c.Period {
		errs = append(errs, fmt.Errorf("table ttl %s is shorter than the period %s", c.TableTTL, c.Period))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if err := c.Flywheel.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("flywheel: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
