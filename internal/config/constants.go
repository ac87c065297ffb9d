package config

import (
	"time"

	"stockpulse/pkg/contracts"
)

// Application constants
const (
	AppName    = "stockpulse"
	AppVersion = contracts.Version
)

// Cache backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendGCS      = "gcs"
)

// Data fetchers
const (
	FetcherYahoo = "yahoo"
	FetcherMock  = "mock"
)

// Analysis limits and defaults
const (
	MaxTickersLimit        = 10
	DefaultCacheTTLHours   = 24
	DefaultCachePrefix     = "cache/"
	DefaultFetchTimeout    = 10 * time.Second
	DefaultFlatBandPercent = 2.0
)
