package errors_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "stockpulse/internal/errors"
	"stockpulse/internal/shared/testutil"
)

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{
			name:       "context deadline",
			err:        fmt.Errorf("analyze: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   apierrors.TypeTimeout,
		},
		{
			name:       "validation error",
			err:        apierrors.NewValidationError("tickers", "at most %d tickers allowed", 10),
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
			wantCode:   apierrors.CodeValidationFailed,
		},
		{
			name:       "all tickers failed",
			err:        &apierrors.UpstreamDataError{Failures: map[string]string{"ZZZZ": "ticker not found"}},
			wantStatus: http.StatusBadGateway,
			wantType:   apierrors.TypeUpstreamData,
			wantCode:   apierrors.CodeUpstreamData,
		},
		{
			name:       "wrapped api error",
			err:        fmt.Errorf("handler: %w", apierrors.ErrRateLimitExceeded),
			wantStatus: http.StatusTooManyRequests,
			wantType:   apierrors.TypeRateLimit,
			wantCode:   apierrors.CodeRateLimitExceeded,
		},
		{
			name:       "cache error",
			err:        &apierrors.CacheError{Op: "list", Err: fmt.Errorf("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantType:   apierrors.TypeCache,
			wantCode:   apierrors.CodeCacheUnavailable,
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   apierrors.TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			h := apierrors.NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
			rec := httptest.NewRecorder()
			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/v1/analyze", body["instance"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			}
		})
	}
}

func TestErrorHandler_NilError(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := apierrors.NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, 0, rec.Body.Len())
	assert.Equal(t, 0, handler.Count())
}

func TestErrorHandler_LogsServerErrorsAtErrorLevel(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := apierrors.NewErrorHandler(logger, true)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), fmt.Errorf("disk on fire"))

	assert.True(t, handler.ContainsMessage("request failed"))
	assert.Contains(t, rec.Body.String(), "stack")
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := apierrors.NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.HandlePanic(rec, httptest.NewRequest(http.MethodGet, "/panic", nil), "nil map")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "nil map")
}

func TestErrorHandler_NotFound(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := apierrors.NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apierrors.TypeNotFound, body["type"])
	assert.Equal(t, apierrors.CodeNotFound, body["error_code"])
	assert.Equal(t, "/api/v1/nope", body["instance"])
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := apierrors.NewProblemDetails(http.StatusBadRequest, apierrors.TypeValidation, "Validation Failed", "bad", "/a").
		WithExtension("error_code", apierrors.CodeValidationFailed)

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Validation Failed", got["title"])
	assert.Equal(t, apierrors.CodeValidationFailed, got["error_code"])
	assert.Equal(t, "bad", got["detail"])
}
