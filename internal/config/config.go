package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultFavoritesKey = "FAVORITES_V1"
)

// Config holds application configuration loaded from YAML, .env and the environment.
type Config struct {
	Env string

	ServerPort string

	GeocodingAPIURL      string
	GeocodingAPITimeout  time.Duration
	GeocodingResultCount int
	GeocodingLanguage    string

	ForecastAPIURL     string
	ForecastAPITimeout time.Duration

	RequestTimeout time.Duration

	SearchMinLength int
	SearchMaxLength int // 0 disables the bound

	CacheBackend          string // "in_memory" or "memcached"
	CacheTTL              time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	StorageBackend string // "memory" or "sqlite"
	StoragePath    string
	FavoritesKey   string

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	UpstreamRPS    float64 // outbound calls per second across both APIs; 0 disables
	UpstreamBurst  int

	BreakerEnabled          bool
	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold uint32

	ShutdownTimeout time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	GeocodingAPI struct {
		URL         string `yaml:"url"`
		Timeout     string `yaml:"timeout"`
		ResultCount int    `yaml:"result_count"`
		Language    string `yaml:"language"`
	} `yaml:"geocoding_api"`

	ForecastAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"forecast_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Search struct {
		MinLength int `yaml:"min_length"`
		MaxLength int `yaml:"max_length"`
	} `yaml:"search"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Storage struct {
		Backend      string `yaml:"backend"`
		Path         string `yaml:"path"`
		FavoritesKey string `yaml:"favorites_key"`
	} `yaml:"storage"`

	Reliability struct {
		RetryMaxAttempts int     `yaml:"retry_max_attempts"`
		RetryBaseDelay   string  `yaml:"retry_base_delay"`
		RetryMaxDelay    string  `yaml:"retry_max_delay"`
		RateLimitRPS     int     `yaml:"rate_limit_rps"`
		RateLimitBurst   int     `yaml:"rate_limit_burst"`
		UpstreamRPS      float64 `yaml:"upstream_rps"`
		UpstreamBurst    int     `yaml:"upstream_burst"`
	} `yaml:"reliability"`

	CircuitBreaker struct {
		Enabled          *bool  `yaml:"enabled"`
		MaxRequests      uint32 `yaml:"max_requests"`
		Interval         string `yaml:"interval"`
		Timeout          string `yaml:"timeout"`
		FailureThreshold uint32 `yaml:"failure_threshold"`
	} `yaml:"circuit_breaker"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

// Load reads configuration relative to the working directory. See LoadFrom.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom loads root/.env (optional, never overriding the environment) and then
// root/config/{ENV_NAME}.yaml (default dev). A missing file is an error only when
// ENV_NAME was set explicitly; otherwise defaults apply.
func LoadFrom(root string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	explicitEnv := env != ""
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	configPath := filepath.Join(root, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err):
		if explicitEnv {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := fromFile(&fc)
	cfg.Env = env
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(fc *fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerPort = orDefault(fc.Server.Port, "8080")

	cfg.GeocodingAPIURL = orDefault(fc.GeocodingAPI.URL, DefaultGeocodingURL)
	cfg.GeocodingAPITimeout = parseDurationOrZero(fc.GeocodingAPI.Timeout, 3*time.Second)
	cfg.GeocodingResultCount = positiveOr(fc.GeocodingAPI.ResultCount, 10)
	cfg.GeocodingLanguage = orDefault(fc.GeocodingAPI.Language, "en")

	cfg.ForecastAPIURL = orDefault(fc.ForecastAPI.URL, DefaultForecastURL)
	cfg.ForecastAPITimeout = parseDurationOrZero(fc.ForecastAPI.Timeout, 5*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.SearchMinLength = positiveOr(fc.Search.MinLength, 2)
	cfg.SearchMaxLength = fc.Search.MaxLength
	if cfg.SearchMaxLength < 0 {
		cfg.SearchMaxLength = 0
	}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(orDefault(fc.Cache.Backend, "in_memory")))
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 10*time.Minute)
	cfg.MemcachedAddrs = orDefault(fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = positiveOr(fc.Cache.Memcached.MaxIdleConns, 2)

	cfg.StorageBackend = strings.TrimSpace(strings.ToLower(orDefault(fc.Storage.Backend, "sqlite")))
	cfg.StoragePath = orDefault(fc.Storage.Path, "weatherapp.db")
	cfg.FavoritesKey = orDefault(fc.Storage.FavoritesKey, DefaultFavoritesKey)

	cfg.RetryAttempts = positiveOr(fc.Reliability.RetryMaxAttempts, 3)
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 200*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = positiveOr(fc.Reliability.RateLimitRPS, 20)
	cfg.RateLimitBurst = positiveOr(fc.Reliability.RateLimitBurst, 40)
	cfg.UpstreamRPS = fc.Reliability.UpstreamRPS
	if cfg.UpstreamRPS < 0 {
		cfg.UpstreamRPS = 0
	}
	cfg.UpstreamBurst = positiveOr(fc.Reliability.UpstreamBurst, 5)

	cfg.BreakerEnabled = true
	if fc.CircuitBreaker.Enabled != nil {
		cfg.BreakerEnabled = *fc.CircuitBreaker.Enabled
	}
	cfg.BreakerMaxRequests = fc.CircuitBreaker.MaxRequests
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = 1
	}
	cfg.BreakerInterval = parseDuration(fc.CircuitBreaker.Interval, time.Minute)
	cfg.BreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)
	cfg.BreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, time.Minute)
	cfg.DegradedErrorPct = positiveOr(fc.Lifecycle.DegradedErrorPct, 50)
	return cfg
}

// applyEnvOverrides lets deployment env vars win over the file.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.ServerPort = v
	}
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND"))); v != "" {
		cfg.CacheBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")); v != "" {
		cfg.MemcachedAddrs = v
	}
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_BACKEND"))); v != "" {
		cfg.StorageBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("STORAGE_PATH")); v != "" {
		cfg.StoragePath = v
	}
	if v := strings.TrimSpace(os.Getenv("GEOCODING_API_URL")); v != "" {
		cfg.GeocodingAPIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FORECAST_API_URL")); v != "" {
		cfg.ForecastAPIURL = v
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func positiveOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout is raised above the slower
// upstream timeout when needed.
func validate(cfg *Config) error {
	if cfg.GeocodingAPITimeout <= 0 {
		return fmt.Errorf("geocoding_api.timeout must be positive")
	}
	if cfg.ForecastAPITimeout <= 0 {
		return fmt.Errorf("forecast_api.timeout must be positive")
	}
	slowest := cfg.GeocodingAPITimeout
	if cfg.ForecastAPITimeout > slowest {
		slowest = cfg.ForecastAPITimeout
	}
	if cfg.RequestTimeout <= slowest {
		cfg.RequestTimeout = slowest + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	switch cfg.StorageBackend {
	case "memory":
	case "sqlite":
		if cfg.StoragePath == "" {
			return fmt.Errorf("storage.path required for sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or sqlite, got %q", cfg.StorageBackend)
	}
	if cfg.SearchMaxLength > 0 && cfg.SearchMaxLength < cfg.SearchMinLength {
		return fmt.Errorf("search.max_length (%d) must not be below search.min_length (%d)", cfg.SearchMaxLength, cfg.SearchMinLength)
	}
	return nil
}
