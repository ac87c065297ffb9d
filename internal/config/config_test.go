package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key := kv[:i]
				if len(key) > len(EnvPrefix) && key[:len(EnvPrefix)+1] == EnvPrefix+"_" {
					val := kv[i+1:]
					os.Unsetenv(key)
					t.Cleanup(func() { os.Setenv(key, val) })
				}
				break
			}
		}
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no env or file",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.True(t, cfg.Cache.Enabled)
				assert.Equal(t, 24, cfg.Cache.TTLHours)
				assert.Equal(t, 24*time.Hour, cfg.Cache.TTL())
				assert.Equal(t, BackendMemory, cfg.Cache.Backend)
				assert.Equal(t, "cache/", cfg.Cache.Prefix)
				assert.Equal(t, FetcherYahoo, cfg.Analysis.Fetcher)
				assert.Equal(t, 10*time.Second, cfg.Analysis.FetchTimeout)
				assert.Equal(t, 2.0, cfg.Analysis.FlatBandPercent)
				assert.Equal(t, 10, cfg.Analysis.MaxTickers)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
		{
			name: "env overrides defaults",
			env: map[string]string{
				"STOCKPULSE_SERVER_PORT":            "9090",
				"STOCKPULSE_CACHE_ENABLED":          "false",
				"STOCKPULSE_CACHE_TTL_HOURS":        "6",
				"STOCKPULSE_ANALYSIS_FETCHER":       "mock",
				"STOCKPULSE_ANALYSIS_FETCH_TIMEOUT": "3s",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.False(t, cfg.Cache.Enabled)
				assert.Equal(t, 6, cfg.Cache.TTLHours)
				assert.Equal(t, FetcherMock, cfg.Analysis.Fetcher)
				assert.Equal(t, 3*time.Second, cfg.Analysis.FetchTimeout)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
			},
		},
		{
			name: "file overrides defaults",
			file: "server:\n  port: 7000\ncache:\n  backend: sqlite\n  sqlite_path: /tmp/c.db\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7000, cfg.Server.Port)
				assert.Equal(t, BackendSQLite, cfg.Cache.Backend)
				assert.Equal(t, "/tmp/c.db", cfg.Cache.SQLitePath)
				assert.Equal(t, 24, cfg.Cache.TTLHours)
			},
		},
		{
			name: "env wins over file",
			file: "server:\n  port: 7000\n",
			env:  map[string]string{"STOCKPULSE_SERVER_PORT": "7100"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7100, cfg.Server.Port)
			},
		},
		{
			name:    "postgres backend requires dsn",
			env:     map[string]string{"STOCKPULSE_CACHE_BACKEND": "postgres"},
			wantErr: "requires a postgres dsn",
		},
		{
			name:    "gcs backend requires bucket",
			env:     map[string]string{"STOCKPULSE_CACHE_BACKEND": "gcs"},
			wantErr: "requires a bucket",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"STOCKPULSE_CACHE_BACKEND": "s3"},
			wantErr: "unknown cache backend",
		},
		{
			name:    "unknown fetcher",
			env:     map[string]string{"STOCKPULSE_ANALYSIS_FETCHER": "bloomberg"},
			wantErr: "unknown fetcher",
		},
		{
			name:    "too many tickers",
			env:     map[string]string{"STOCKPULSE_ANALYSIS_MAX_TICKERS": "11"},
			wantErr: "max tickers",
		},
		{
			name:    "invalid port",
			env:     map[string]string{"STOCKPULSE_SERVER_PORT": "70000"},
			wantErr: "invalid server port",
		},
		{
			name:    "malformed env value",
			env:     map[string]string{"STOCKPULSE_CACHE_TTL_HOURS": "soon"},
			wantErr: "failed to load config from env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := LoadFile(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestValidate_DefaultsConcurrencyToMaxTickers(t *testing.T) {
	cfg := Default()
	cfg.Analysis.MaxConcurrentFetches = 0
	require.NoError(t, cfg.validate())
	assert.Equal(t, cfg.Analysis.MaxTickers, cfg.Analysis.MaxConcurrentFetches)
}
