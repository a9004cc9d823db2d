// Package config loads service configuration from a YAML file with ${ENV}
// substitution. Environment variables prefixed RATEBENCH_ override file values
// so containers can run without a config file at all.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses "15m"-style strings from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Auth     AuthConfig    `yaml:"auth"`
	Postgres PGConfig      `yaml:"postgres"`
	Redis    RedisConfig   `yaml:"redis"`
	Catalog  CatalogConfig `yaml:"catalog"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	GRPCAddr        string   `yaml:"grpc_addr"`
	RateBurst       int      `yaml:"rate_burst"`
	RatePerSecond   int      `yaml:"rate_per_second"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type AuthConfig struct {
	Secret     string   `yaml:"secret"`
	Issuer     string   `yaml:"issuer"`
	AccessTTL  Duration `yaml:"access_ttl"`
	RefreshTTL Duration `yaml:"refresh_ttl"`
}

type PGConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file or overrides are given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			GRPCAddr:        ":9090",
			RateBurst:       50,
			RatePerSecond:   25,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Auth: AuthConfig{
			Issuer:     "ratebench",
			AccessTTL:  Duration(15 * time.Minute),
			RefreshTTL: Duration(14 * 24 * time.Hour),
		},
	}
}

// Load reads the optional YAML file, expands ${ENV} references, then applies
// RATEBENCH_ environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RATEBENCH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RATEBENCH_GRPC_ADDR"); v != "" {
		cfg.Server.GRPCAddr = v
	}
	if v := os.Getenv("RATEBENCH_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("RATEBENCH_PG_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("RATEBENCH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RATEBENCH_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RATEBENCH_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	if c.Server.RateBurst <= 0 || c.Server.RatePerSecond <= 0 {
		return fmt.Errorf("config: rate limits must be positive")
	}
	return nil
}
