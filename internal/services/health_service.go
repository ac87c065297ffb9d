package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"stockpulse/pkg/contracts"
)

// Pinger reports whether a backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClientCounter reports connected WebSocket clients
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version      string
	fetcherName  string
	cacheBackend string
	cache        Pinger
	hub          ClientCounter
	startTime    time.Time
	logger       *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// NewHealthService creates a health service. cache and hub may be nil.
func NewHealthService(version, fetcherName, cacheBackend string, cache Pinger, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("fetcher", fetcherName),
		slog.String("cache_backend", cacheBackend))

	return &HealthService{
		version:      version,
		fetcherName:  fetcherName,
		cacheBackend: cacheBackend,
		cache:        cache,
		hub:          hub,
		startTime:    time.Now(),
		logger:       logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports "ready" only when the cache backend answers. The
// service still computes results without a cache, so a failed backend
// reports "degraded" rather than "not_ready".
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"cache":     hs.checkCacheHealth(ctx),
			"websocket": hs.checkWebSocketHealth(),
			"fetcher": {
				Status:  "ready",
				Message: fmt.Sprintf("using %s data source", hs.fetcherName),
			},
		},
	}

	for _, sh := range status.Services {
		if sh.Status != "ready" {
			status.Status = "degraded"
			break
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "ReadinessCheck: degraded", slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	return map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
		"build_time":   contracts.BuildTime,
		"git_commit":   contracts.GitCommit,
		"cache_format": contracts.CacheFormatVersion,
		"api_version":  contracts.APIVersion,
	}
}

func (hs *HealthService) checkCacheHealth(ctx context.Context) ServiceHealth {
	if hs.cache == nil {
		return ServiceHealth{Status: "ready", Message: "cache disabled"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := hs.cache.Ping(pingCtx); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("%s backend unreachable: %v", hs.cacheBackend, err),
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%s backend is healthy", hs.cacheBackend),
	}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	sh := ServiceHealth{
		Status: "ready",
		Uptime: time.Since(hs.startTime).String(),
	}
	if hs.hub != nil {
		sh.Message = fmt.Sprintf("%d clients connected", hs.hub.ClientCount())
	}
	return sh
}
