package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpulse/internal/services"
	"stockpulse/internal/shared/testutil"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type clientCount int

func (c clientCount) ClientCount() int { return int(c) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		pingErr    error
		wantStatus string
	}{
		{name: "health", path: "/health", wantStatus: "healthy"},
		{name: "ready", path: "/health/ready", wantStatus: "ready"},
		{name: "degraded cache", path: "/health/ready", pingErr: errors.New("dial tcp: refused"), wantStatus: "degraded"},
		{name: "live", path: "/health/live", wantStatus: "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			svc := services.NewHealthService("v1.0.0-test", "mock", "memory",
				pingerFunc(func(context.Context) error { return tt.pingErr }), clientCount(2), logger)

			r := chi.NewRouter()
			r.Mount("/health", NewHealthHandler(svc, logger).Routes())

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "v1.0.0-test", body["version"])
		})
	}
}

func TestHealthHandler_Version(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	svc := services.NewHealthService("v1.2.3", "yahoo", "redis", nil, nil, logger)

	r := chi.NewRouter()
	r.Mount("/health", NewHealthHandler(svc, logger).Routes())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"v1.2.3"`)
}
