package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env      string `mapstructure:"HIP3_ENV"`
	HTTPAddr string `mapstructure:"HIP3_HTTP_ADDR"`

	Upstream UpstreamConfig `mapstructure:",squash"`
	Refresh  RefreshConfig  `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type UpstreamConfig struct {
	APIURL         string        `mapstructure:"HIP3_API_URL"`
	Timeout        time.Duration `mapstructure:"HIP3_API_TIMEOUT"`
	RetryBudget    int           `mapstructure:"HIP3_API_RETRIES"`
	RetryBaseDelay time.Duration `mapstructure:"HIP3_API_RETRY_BASE_DELAY"`
}

type RefreshConfig struct {
	Interval        time.Duration `mapstructure:"HIP3_REFRESH_INTERVAL"`
	ResolverWorkers int           `mapstructure:"HIP3_RESOLVER_WORKERS"`
	CandleGate      int           `mapstructure:"HIP3_CANDLE_CONCURRENCY"`
}

type CacheConfig struct {
	RedisAddr string `mapstructure:"HIP3_REDIS_ADDR"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"HIP3_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"HIP3_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // env vars already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("HIP3_ENV", "dev")
	viper.SetDefault("HIP3_HTTP_ADDR", ":8080")
	viper.SetDefault("HIP3_API_URL", "https://api.hyperliquid.xyz/info")
	viper.SetDefault("HIP3_API_TIMEOUT", "10s")
	viper.SetDefault("HIP3_API_RETRIES", 4)
	viper.SetDefault("HIP3_API_RETRY_BASE_DELAY", "1s")
	viper.SetDefault("HIP3_REFRESH_INTERVAL", "30s")
	viper.SetDefault("HIP3_RESOLVER_WORKERS", 12)
	viper.SetDefault("HIP3_CANDLE_CONCURRENCY", 6)
	viper.SetDefault("HIP3_REDIS_ADDR", "")
	viper.SetDefault("HIP3_RATE_LIMIT_RPM", 120)
	viper.SetDefault("HIP3_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	if origins := viper.GetString("HIP3_CORS_ALLOWED_ORIGINS"); origins != "" {
		viper.Set("HIP3_CORS_ALLOWED_ORIGINS", strings.Split(origins, ","))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Upstream.APIURL == "" {
		return fmt.Errorf("HIP3_API_URL is required")
	}
	if c.Upstream.RetryBudget < 0 {
		return fmt.Errorf("HIP3_API_RETRIES must not be negative")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("HIP3_REFRESH_INTERVAL must be positive")
	}
	if c.Refresh.ResolverWorkers <= 0 {
		return fmt.Errorf("HIP3_RESOLVER_WORKERS must be positive")
	}
	if c.Refresh.CandleGate <= 0 {
		return fmt.Errorf("HIP3_CANDLE_CONCURRENCY must be positive")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}
