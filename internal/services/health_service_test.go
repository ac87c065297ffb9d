package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"stockpulse/internal/shared/testutil"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixedCounter int

func (c fixedCounter) ClientCount() int { return int(c) }

func TestHealthService_ReadinessCheck(t *testing.T) {
	tests := []struct {
		name       string
		cache      Pinger
		wantStatus string
		wantCache  string
	}{
		{"healthy backend", pingFunc(func(context.Context) error { return nil }), "ready", "ready"},
		{"unreachable backend", pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }), "degraded", "not_ready"},
		{"cache disabled", nil, "ready", "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			hs := NewHealthService("1.0.0", "mock", "redis", tt.cache, fixedCounter(3), logger)

			status := hs.ReadinessCheck(context.Background())
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, tt.wantCache, status.Services["cache"].Status)
			assert.Equal(t, "3 clients connected", status.Services["websocket"].Message)
		})
	}
}

func TestHealthService_HealthAndLiveness(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hs := NewHealthService("1.2.3", "yahoo", "memory", nil, nil, logger)

	health := hs.HealthCheck(context.Background())
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "1.2.3", health.Version)

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")

	assert.Equal(t, "1.2.3", hs.Version()["version"])
}
