package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration for the profile pool service.
type Config struct {
	Listen  string `yaml:"listen" json:"listen"`
	Debug   bool   `yaml:"debug" json:"debug"`
	LogFile string `yaml:"log_file" json:"log_file"`

	// StoreBackend selects the shared-store implementation: "file" or "redis".
	StoreBackend string `yaml:"store_backend" json:"store_backend"`
	StorePath    string `yaml:"store_path" json:"store_path"`

	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" json:"redis_prefix"`

	// SweepInterval is how often the server sweeps expired windows out of
	// the shared store.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:        ":8318",
		StoreBackend:  "file",
		StorePath:     "data/authpool.json",
		RedisPrefix:   "authpool",
		SweepInterval: 30 * time.Second,
	}
}

// Load reads path (when it exists), merges environment overrides on top of
// the defaults and validates the result. A missing file is not an error; a
// malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.mergeEnvVars()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeEnvVars() {
	if v := os.Getenv("AUTHPOOL_LISTEN"); v != "" {
		c.Listen = v
	}
	setToggleFromEnv("AUTHPOOL_DEBUG", func(b bool) { c.Debug = b })
	if v := os.Getenv("AUTHPOOL_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("AUTHPOOL_STORE_BACKEND"); v != "" {
		c.StoreBackend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("AUTHPOOL_STORE_PATH"); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	setIntFromEnv("REDIS_DB", func(n int) { c.RedisDB = n })
	if v := os.Getenv("REDIS_PREFIX"); v != "" {
		c.RedisPrefix = v
	}
	if v := os.Getenv("AUTHPOOL_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.SweepInterval = d
		}
	}
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "file":
		if c.StorePath == "" {
			return fmt.Errorf("store_path is required for the file backend")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store_backend %q", c.StoreBackend)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	return nil
}

func setIntFromEnv(key string, setter func(int)) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			setter(n)
		}
	}
}

func setToggleFromEnv(key string, setter func(bool)) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		setter(true)
	case "0", "false", "no", "off":
		setter(false)
	}
}
