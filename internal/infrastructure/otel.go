package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"stockpulse/internal/config"
)

// MeterName is the instrumentation scope for every tracer and meter.
const MeterName = "stockpulse"

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel wires tracing (stdout exporter) and metrics (Prometheus
// exporter) according to cfg. Disabled signals fall back to the global
// no-op providers so callers never need nil checks.
func InitializeOTel(cfg config.OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = GetLogger()
	}
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(config.AppVersion),
			attribute.String("service.instance.id", generateInstanceID()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
		Tracer: otel.Tracer(MeterName),
		Meter:  noop.NewMeterProvider().Meter(MeterName),
	}

	if cfg.TracingEnabled {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		)
		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(config.AppVersion))
		otel.SetTracerProvider(tp)
	}

	if cfg.MetricsEnabled {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(config.AppVersion))
		providers.PrometheusHTTP = promhttp.Handler()
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.Bool("tracing_enabled", cfg.TracingEnabled),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled),
		slog.Float64("sample_rate", cfg.SampleRate))

	return providers, nil
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}

// AnalysisMetrics holds the instruments recorded by the analysis pipeline
type AnalysisMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	AnalysisRequests metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	TickerFetches    metric.Int64Counter
	TickerFailures   metric.Int64Counter

	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter
	CacheErrors metric.Int64Counter
	CacheSwept  metric.Int64Counter

	WebSocketClients metric.Int64UpDownCounter
	WebSocketDropped metric.Int64Counter
}

// NewAnalysisMetrics creates the analysis instruments on meter. A nil meter
// yields no-op instruments.
func NewAnalysisMetrics(meter metric.Meter) (*AnalysisMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	var (
		m   AnalysisMetrics
		err error
	)

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.HTTPRequestsTotal, "http_requests_total", "Total number of HTTP requests"},
		{&m.AnalysisRequests, "analysis_requests_total", "Total number of analysis requests"},
		{&m.TickerFetches, "analysis_ticker_fetches_total", "Total number of per-ticker upstream fetches"},
		{&m.TickerFailures, "analysis_ticker_failures_total", "Total number of tickers dropped from an analysis"},
		{&m.CacheHits, "cache_hits_total", "Total number of result cache hits"},
		{&m.CacheMisses, "cache_misses_total", "Total number of result cache misses"},
		{&m.CacheErrors, "cache_errors_total", "Total number of blob store failures"},
		{&m.CacheSwept, "cache_swept_entries_total", "Total number of expired entries removed by the sweeper"},
		{&m.WebSocketDropped, "websocket_messages_dropped_total", "Total number of progress messages dropped for slow or absent clients"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	m.WebSocketClients, err = meter.Int64UpDownCounter(
		"websocket_clients",
		metric.WithDescription("Number of connected WebSocket clients"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.AnalysisDuration, err = meter.Float64Histogram(
		"analysis_duration_seconds",
		metric.WithDescription("End to end analysis duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordAnalysis records one finished analysis request
func (m *AnalysisMetrics) RecordAnalysis(ctx context.Context, duration time.Duration, cached bool, outcome string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Bool("cached", cached),
		attribute.String("outcome", outcome),
	)
	m.AnalysisRequests.Add(ctx, 1, attrs)
	m.AnalysisDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCacheLookup records a hit, a miss or a store error
func (m *AnalysisMetrics) RecordCacheLookup(ctx context.Context, hit bool, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.CacheErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "get")))
		m.CacheMisses.Add(ctx, 1)
	case hit:
		m.CacheHits.Add(ctx, 1)
	default:
		m.CacheMisses.Add(ctx, 1)
	}
}

// RecordCacheWriteError counts a failed write-through
func (m *AnalysisMetrics) RecordCacheWriteError(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "put")))
}

// RecordTicker records the outcome of one ticker's fetch and compute
func (m *AnalysisMetrics) RecordTicker(ctx context.Context, ticker string, err error) {
	if m == nil {
		return
	}
	m.TickerFetches.Add(ctx, 1)
	if err != nil {
		m.TickerFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("ticker", ticker),
			attribute.String("error.type", fmt.Sprintf("%T", err)),
		))
	}
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanEvent adds an event to the current span
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
