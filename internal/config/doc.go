// Package config loads the stockpulse configuration.
//
// Values are resolved in the following order, later sources winning:
//
//  1. Default()
//  2. a YAML file (STOCKPULSE_CONFIG, config.yaml or configs/config.yaml)
//  3. environment variables prefixed with STOCKPULSE_
//
// Environment variable names follow the envconfig tags of each section:
//
//	STOCKPULSE_SERVER_PORT=8080
//	STOCKPULSE_CACHE_BACKEND=redis
//	STOCKPULSE_CACHE_TTL_HOURS=24
//	STOCKPULSE_CACHE_ENABLED=false
//	STOCKPULSE_ANALYSIS_FETCHER=mock
//	STOCKPULSE_ANALYSIS_FETCH_TIMEOUT=5s
package config
