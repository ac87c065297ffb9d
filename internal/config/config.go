package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	OTel      OTelConfig      `yaml:"otel" envconfig:"OTEL"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"45s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"20"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"10"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/stockpulse.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// CacheConfig selects and tunes the result cache backend.
type CacheConfig struct {
	Enabled       bool   `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	TTLHours      int    `yaml:"ttl_hours" envconfig:"TTL_HOURS" default:"24"`
	Backend       string `yaml:"backend" envconfig:"BACKEND" default:"memory"`
	Prefix        string `yaml:"prefix" envconfig:"PREFIX" default:"cache/"`
	Dir           string `yaml:"dir" envconfig:"DIR" default:"data/cache"`
	SQLitePath    string `yaml:"sqlite_path" envconfig:"SQLITE_PATH" default:"data/cache.db"`
	PostgresDSN   string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB" default:"0"`
	Bucket        string `yaml:"bucket" envconfig:"BUCKET"`
	SweepSchedule string `yaml:"sweep_schedule" envconfig:"SWEEP_SCHEDULE" default:"@hourly"`
}

// TTL returns the configured entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// AnalysisConfig contains data fetching and metric tuning
type AnalysisConfig struct {
	Fetcher              string        `yaml:"fetcher" envconfig:"FETCHER" default:"yahoo"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" default:"10s"`
	FlatBandPercent      float64       `yaml:"flat_band_percent" envconfig:"FLAT_BAND_PERCENT" default:"2"`
	MaxTickers           int           `yaml:"max_tickers" envconfig:"MAX_TICKERS" default:"10"`
	MaxConcurrentFetches int           `yaml:"max_concurrent_fetches" envconfig:"MAX_CONCURRENT_FETCHES" default:"5"`
	YahooBaseURL         string        `yaml:"yahoo_base_url" envconfig:"YAHOO_BASE_URL" default:"https://query1.finance.yahoo.com"`
	YahooRPS             float64       `yaml:"yahoo_rps" envconfig:"YAHOO_RPS" default:"4"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// OTelConfig toggles tracing and metrics export
type OTelConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" default:"stockpulse"`
	TracingEnabled bool    `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED" default:"false"`
	MetricsEnabled bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	SampleRate     float64 `yaml:"sample_rate" envconfig:"SAMPLE_RATE" default:"0.1"`
}

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "STOCKPULSE"

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Only variables actually present override the file; envconfig would
	// otherwise reapply struct defaults on top of it.
	if err := processEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML document at filePath onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func processEnv(cfg *Config) error {
	if !hasPrefixedEnv() {
		return nil
	}

	var envCfg Config
	if err := envconfig.Process(EnvPrefix, &envCfg); err != nil {
		return err
	}
	mergeConfigs(cfg, &envCfg)
	return nil
}

func hasPrefixedEnv() bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvPrefix+"_") {
			return true
		}
	}
	return false
}

// mergeConfigs copies onto dst every field whose variable is set in the environment
func mergeConfigs(dst, env *Config) {
	set := func(name string) bool {
		_, ok := os.LookupEnv(EnvPrefix + "_" + name)
		return ok
	}

	if set("SERVER_PORT") {
		dst.Server.Port = env.Server.Port
	}
	if set("SERVER_READ_TIMEOUT") {
		dst.Server.ReadTimeout = env.Server.ReadTimeout
	}
	if set("SERVER_WRITE_TIMEOUT") {
		dst.Server.WriteTimeout = env.Server.WriteTimeout
	}
	if set("SERVER_IDLE_TIMEOUT") {
		dst.Server.IdleTimeout = env.Server.IdleTimeout
	}
	if set("SERVER_SHUTDOWN_TIMEOUT") {
		dst.Server.ShutdownTimeout = env.Server.ShutdownTimeout
	}
	if set("SERVER_REQUEST_TIMEOUT") {
		dst.Server.RequestTimeout = env.Server.RequestTimeout
	}

	if set("SECURITY_ALLOWED_ORIGINS") {
		dst.Security.AllowedOrigins = env.Security.AllowedOrigins
	}
	if set("SECURITY_ENABLE_CORS") {
		dst.Security.EnableCORS = env.Security.EnableCORS
	}
	if set("SECURITY_RATE_LIMIT_ENABLED") {
		dst.Security.RateLimit.Enabled = env.Security.RateLimit.Enabled
	}
	if set("SECURITY_RATE_LIMIT_RPS") {
		dst.Security.RateLimit.RPS = env.Security.RateLimit.RPS
	}
	if set("SECURITY_RATE_LIMIT_BURST") {
		dst.Security.RateLimit.Burst = env.Security.RateLimit.Burst
	}

	if set("LOGGING_LEVEL") {
		dst.Logging.Level = env.Logging.Level
	}
	if set("LOGGING_FORMAT") {
		dst.Logging.Format = env.Logging.Format
	}
	if set("LOGGING_OUTPUT") {
		dst.Logging.Output = env.Logging.Output
	}
	if set("LOGGING_FILE_PATH") {
		dst.Logging.FilePath = env.Logging.FilePath
	}
	if set("LOGGING_DEVELOPMENT") {
		dst.Logging.Development = env.Logging.Development
	}

	if set("CACHE_ENABLED") {
		dst.Cache.Enabled = env.Cache.Enabled
	}
	if set("CACHE_TTL_HOURS") {
		dst.Cache.TTLHours = env.Cache.TTLHours
	}
	if set("CACHE_BACKEND") {
		dst.Cache.Backend = env.Cache.Backend
	}
	if set("CACHE_PREFIX") {
		dst.Cache.Prefix = env.Cache.Prefix
	}
	if set("CACHE_DIR") {
		dst.Cache.Dir = env.Cache.Dir
	}
	if set("CACHE_SQLITE_PATH") {
		dst.Cache.SQLitePath = env.Cache.SQLitePath
	}
	if set("CACHE_POSTGRES_DSN") {
		dst.Cache.PostgresDSN = env.Cache.PostgresDSN
	}
	if set("CACHE_REDIS_ADDR") {
		dst.Cache.RedisAddr = env.Cache.RedisAddr
	}
	if set("CACHE_REDIS_DB") {
		dst.Cache.RedisDB = env.Cache.RedisDB
	}
	if set("CACHE_BUCKET") {
		dst.Cache.Bucket = env.Cache.Bucket
	}
	if set("CACHE_SWEEP_SCHEDULE") {
		dst.Cache.SweepSchedule = env.Cache.SweepSchedule
	}

	if set("ANALYSIS_FETCHER") {
		dst.Analysis.Fetcher = env.Analysis.Fetcher
	}
	if set("ANALYSIS_FETCH_TIMEOUT") {
		dst.Analysis.FetchTimeout = env.Analysis.FetchTimeout
	}
	if set("ANALYSIS_FLAT_BAND_PERCENT") {
		dst.Analysis.FlatBandPercent = env.Analysis.FlatBandPercent
	}
	if set("ANALYSIS_MAX_TICKERS") {
		dst.Analysis.MaxTickers = env.Analysis.MaxTickers
	}
	if set("ANALYSIS_MAX_CONCURRENT_FETCHES") {
		dst.Analysis.MaxConcurrentFetches = env.Analysis.MaxConcurrentFetches
	}
	if set("ANALYSIS_YAHOO_BASE_URL") {
		dst.Analysis.YahooBaseURL = env.Analysis.YahooBaseURL
	}
	if set("ANALYSIS_YAHOO_RPS") {
		dst.Analysis.YahooRPS = env.Analysis.YahooRPS
	}

	if set("OTEL_SERVICE_NAME") {
		dst.OTel.ServiceName = env.OTel.ServiceName
	}
	if set("OTEL_TRACING_ENABLED") {
		dst.OTel.TracingEnabled = env.OTel.TracingEnabled
	}
	if set("OTEL_METRICS_ENABLED") {
		dst.OTel.MetricsEnabled = env.OTel.MetricsEnabled
	}
	if set("OTEL_SAMPLE_RATE") {
		dst.OTel.SampleRate = env.OTel.SampleRate
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Cache.TTLHours < 0 {
		return fmt.Errorf("cache ttl must not be negative: %d", c.Cache.TTLHours)
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendFile, BackendSQLite, BackendRedis:
	case BackendPostgres:
		if c.Cache.PostgresDSN == "" {
			return fmt.Errorf("cache backend %q requires a postgres dsn", c.Cache.Backend)
		}
	case BackendGCS:
		if c.Cache.Bucket == "" {
			return fmt.Errorf("cache backend %q requires a bucket", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("unknown cache backend: %q", c.Cache.Backend)
	}

	if c.Analysis.Fetcher != FetcherYahoo && c.Analysis.Fetcher != FetcherMock {
		return fmt.Errorf("unknown fetcher: %q", c.Analysis.Fetcher)
	}

	if c.Analysis.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}

	if c.Analysis.MaxTickers <= 0 || c.Analysis.MaxTickers > MaxTickersLimit {
		return fmt.Errorf("max tickers must be between 1 and %d", MaxTickersLimit)
	}

	if c.Analysis.FlatBandPercent < 0 {
		return fmt.Errorf("flat band must not be negative")
	}

	if c.Analysis.MaxConcurrentFetches <= 0 {
		c.Analysis.MaxConcurrentFetches = c.Analysis.MaxTickers
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  45 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   10,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/stockpulse.log",
		},
		Cache: CacheConfig{
			Enabled:       true,
			TTLHours:      DefaultCacheTTLHours,
			Backend:       BackendMemory,
			Prefix:        DefaultCachePrefix,
			Dir:           "data/cache",
			SQLitePath:    "data/cache.db",
			RedisAddr:     "localhost:6379",
			SweepSchedule: "@hourly",
		},
		Analysis: AnalysisConfig{
			Fetcher:              FetcherYahoo,
			FetchTimeout:         DefaultFetchTimeout,
			FlatBandPercent:      DefaultFlatBandPercent,
			MaxTickers:           MaxTickersLimit,
			MaxConcurrentFetches: 5,
			YahooBaseURL:         "https://query1.finance.yahoo.com",
			YahooRPS:             4,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
		OTel: OTelConfig{
			ServiceName:    AppName,
			MetricsEnabled: true,
			SampleRate:     0.1,
		},
	}
}
