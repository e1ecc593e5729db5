package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/lifetime"
	"github.com/leafsii/rediskit/pkg/partition"
)

// EnvPrefix is prepended to every environment variable, with dots turned
// into underscores: redis.endpoint is read from RK_REDIS_ENDPOINT.
const EnvPrefix = "RK"

type Config struct {
	Env      string         `mapstructure:"env"`
	LogLevel string         `mapstructure:"log_level"`
	HTTPAddr string         `mapstructure:"http_addr"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Security SecurityConfig `mapstructure:"security"`

	// v backs the lifetime table, which is read per key rather than unmarshaled
	v *viper.Viper
}

type RedisConfig struct {
	Backend            string `mapstructure:"backend"` // "redis", "memory"
	Endpoint           string `mapstructure:"endpoint"`
	Password           string `mapstructure:"password"`
	ConnectTimeoutMS   int    `mapstructure:"connect_timeout"`
	AbortOnConnectFail bool   `mapstructure:"abort_on_connect_fail"`
	AllowAdmin         bool   `mapstructure:"allow_admin"`
	DefaultDB          int    `mapstructure:"default_db"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"rate_limit_rpm"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
		filepath.Join("..", "..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // ignore errors; env vars already set take precedence
		}
	}
}

// New returns a viper instance with the environment binding and defaults
// applied but no file read yet.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("redis.backend", string(kv.BackendRedis))
	v.SetDefault("redis.endpoint", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.connect_timeout", 5000)
	v.SetDefault("redis.abort_on_connect_fail", true)
	v.SetDefault("redis.allow_admin", false)
	v.SetDefault("redis.default_db", 0)
	v.SetDefault("security.rate_limit_rpm", 600)
	v.SetDefault("security.cors_allowed_origins", "*")
	return v
}

// Load reads .env files, the optional config file at path and the
// environment. With an empty path a rediskit.{yaml,json,toml} in the working
// directory or ./config is used when present.
func Load(path string) (*Config, error) {
	return LoadInto(New(), path)
}

// LoadInto is Load on a caller-prepared viper instance, e.g. one with
// command line flags already bound.
func LoadInto(v *viper.Viper, path string) (*Config, error) {
	loadDotEnvFiles()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("rediskit")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	// Handle array parsing for comma-separated values
	if origins := v.GetString("security.cors_allowed_origins"); origins != "" {
		v.Set("security.cors_allowed_origins", strings.Split(origins, ","))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.v = v

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch kv.Backend(c.Redis.Backend) {
	case kv.BackendRedis:
		if strings.TrimSpace(c.Redis.Endpoint) == "" {
			return fmt.Errorf("redis.endpoint is required when redis.backend is %q", kv.BackendRedis)
		}
	case kv.BackendMemory:
	default:
		return fmt.Errorf("invalid redis.backend %q (must be redis or memory)", c.Redis.Backend)
	}
	if c.Redis.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("redis.connect_timeout must be positive, got %d", c.Redis.ConnectTimeoutMS)
	}
	if _, err := partition.New(c.Redis.DefaultDB); err != nil {
		return fmt.Errorf("redis.default_db: %w", err)
	}
	if c.Security.RateLimitRPM <= 0 {
		return fmt.Errorf("security.rate_limit_rpm must be positive, got %d", c.Security.RateLimitRPM)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// Connection converts the redis section into a store connection config.
func (c *Config) Connection() kv.Config {
	return kv.Config{
		Backend:            kv.Backend(c.Redis.Backend),
		Endpoint:           c.Redis.Endpoint,
		Password:           c.Redis.Password,
		ConnectTimeout:     time.Duration(c.Redis.ConnectTimeoutMS) * time.Millisecond,
		AbortOnConnectFail: c.Redis.AbortOnConnectFail,
		AllowAdmin:         c.Redis.AllowAdmin,
	}
}

// DefaultDB is the validated redis.default_db.
func (c *Config) DefaultDB() partition.DB {
	return partition.MustNew(c.Redis.DefaultDB)
}

// Lifetimes is the source of redis.lifetime.db0..db15. Resetting lifetimes
// re-reads the same instance, so environment changes are picked up.
func (c *Config) Lifetimes() lifetime.Source {
	return c.v
}

// Viper exposes the underlying instance.
func (c *Config) Viper() *viper.Viper {
	return c.v
}
