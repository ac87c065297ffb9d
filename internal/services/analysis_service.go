package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"stockpulse/internal/analytics"
	"stockpulse/internal/cache"
	"stockpulse/internal/config"
	apierrors "stockpulse/internal/errors"
	"stockpulse/internal/fetcher"
	"stockpulse/internal/infrastructure"
	"stockpulse/internal/timeseries"
	"stockpulse/pkg/contracts/domain"
)

// Stage is a step of the per-request analysis state machine
type Stage string

const (
	StageReceived    Stage = "received"
	StageCacheCheck  Stage = "cache_check"
	StageCacheHit    Stage = "cache_hit"
	StageCacheMiss   Stage = "cache_miss"
	StageFetching    Stage = "fetching"
	StageNormalizing Stage = "normalizing"
	StageComputing   Stage = "computing"
	StageCacheWrite  Stage = "cache_write"
	StageRespond     Stage = "respond"
)

// Analysis outcomes recorded in metrics
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
	OutcomeInvalid = "invalid"
	OutcomeAborted = "aborted"
)

// AnalysisOptions tunes an AnalysisService
type AnalysisOptions struct {
	FetchTimeout         time.Duration
	MaxConcurrentFetches int
	MaxTickers           int
	FlatBandPercent      float64
}

// AnalysisOptionsFromConfig maps the analysis config section
func AnalysisOptionsFromConfig(cfg config.AnalysisConfig) AnalysisOptions {
	return AnalysisOptions{
		FetchTimeout:         cfg.FetchTimeout,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		MaxTickers:           cfg.MaxTickers,
		FlatBandPercent:      cfg.FlatBandPercent,
	}
}

// AnalysisService runs analysis requests: cache lookup, per-ticker fan-out
// of fetch, normalize and compute, correlation and write-through.
type AnalysisService struct {
	fetcher    fetcher.DataFetcher
	cache      *cache.ResultCache
	normalizer *timeseries.Normalizer
	calculator *analytics.Calculator
	progress   *ProgressReporter
	metrics    *infrastructure.AnalysisMetrics
	tracer     trace.Tracer
	opts       AnalysisOptions
	now        func() time.Time
	logger     *slog.Logger
}

// NewAnalysisService creates an AnalysisService. progress and metrics may be nil.
func NewAnalysisService(f fetcher.DataFetcher, rc *cache.ResultCache, progress *ProgressReporter,
	metrics *infrastructure.AnalysisMetrics, opts AnalysisOptions, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = config.DefaultFetchTimeout
	}
	if opts.MaxTickers <= 0 || opts.MaxTickers > domain.MaxTickers {
		opts.MaxTickers = domain.MaxTickers
	}
	if opts.MaxConcurrentFetches <= 0 {
		opts.MaxConcurrentFetches = opts.MaxTickers
	}

	logger = logger.With(slog.String("component", "analysis_service"))
	logger.Info("AnalysisService initialized",
		slog.String("fetcher", f.Name()),
		slog.Bool("cache_enabled", rc.Enabled()),
		slog.Duration("fetch_timeout", opts.FetchTimeout),
		slog.Int("max_concurrent_fetches", opts.MaxConcurrentFetches))

	return &AnalysisService{
		fetcher:    f,
		cache:      rc,
		normalizer: timeseries.NewNormalizer(logger),
		calculator: analytics.NewCalculator(opts.FlatBandPercent),
		progress:   progress,
		metrics:    metrics,
		tracer:     otel.Tracer(infrastructure.MeterName),
		opts:       opts,
		now:        time.Now,
		logger:     logger,
	}
}

// tickerResult is the outcome of one ticker's pipeline
type tickerResult struct {
	series  domain.TickerSeries
	metrics domain.MetricsResult
	err     error
}

// Analyze serves req from cache or computes it. Per-ticker failures are
// reported in the response; only validation errors, an all-failed request
// (UpstreamDataError) and caller cancellation return an error.
func (s *AnalysisService) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error) {
	started := s.now()
	requestID := uuid.NewString()
	ctx = infrastructure.EnsureTraceID(ctx)
	logger := s.logger.With(
		slog.String("request_id", requestID),
		slog.String("trace_id", infrastructure.GetTraceID(ctx)))

	req = req.Normalize()
	s.stage(ctx, logger, requestID, StageReceived, slog.Any("tickers", req.Tickers))

	if err := req.Validate(s.opts.MaxTickers); err != nil {
		logger.WarnContext(ctx, "analysis request rejected", slog.String("error", err.Error()))
		s.metrics.RecordAnalysis(ctx, s.now().Sub(started), false, OutcomeInvalid)
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "analysis.analyze", trace.WithAttributes(
		attribute.String("request_id", requestID),
		attribute.StringSlice("tickers", req.Tickers),
		attribute.String("interval", string(req.Interval)),
	))
	defer span.End()

	key := s.cache.Key(req)
	s.stage(ctx, logger, requestID, StageCacheCheck, slog.String("cache_key", key))

	entry, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		s.stage(ctx, logger, requestID, StageCacheHit, slog.Time("created_at", entry.CreatedAt))
		resp := responseFromEntry(entry, requestID, s.now())
		span.SetAttributes(attribute.Bool("cached", true))
		s.stage(ctx, logger, requestID, StageRespond, slog.Bool("cached", true))
		s.metrics.RecordAnalysis(ctx, s.now().Sub(started), true, outcome(resp))
		return resp, nil
	case errors.Is(err, cache.ErrCacheMiss):
		s.stage(ctx, logger, requestID, StageCacheMiss)
	default:
		// store outage: compute uncached
		logger.WarnContext(ctx, "cache lookup failed, computing uncached",
			slog.String("cache_key", key),
			slog.String("error", err.Error()))
		infrastructure.RecordError(ctx, err)
		s.stage(ctx, logger, requestID, StageCacheMiss, slog.Bool("cache_error", true))
	}

	results, err := s.runTickers(ctx, logger, requestID, req)
	if err != nil {
		span.SetStatus(codes.Error, "aborted")
		s.metrics.RecordAnalysis(ctx, s.now().Sub(started), false, OutcomeAborted)
		return nil, err
	}

	resp, retryable := s.assemble(ctx, logger, requestID, req, key, results)
	if resp == nil {
		upstream := &apierrors.UpstreamDataError{Failures: failureMessages(req.Tickers, results)}
		logger.ErrorContext(ctx, "all tickers failed", slog.Any("failures", upstream.Failures))
		span.SetStatus(codes.Error, upstream.Error())
		s.metrics.RecordAnalysis(ctx, s.now().Sub(started), false, OutcomeFailed)
		return nil, upstream
	}

	if err := ctx.Err(); err != nil {
		// never persist a result the caller gave up on
		s.metrics.RecordAnalysis(ctx, s.now().Sub(started), false, OutcomeAborted)
		return nil, err
	}

	if retryable {
		logger.InfoContext(ctx, "skipping cache write, transient ticker failures",
			slog.Any("failed_tickers", resp.FailedTickers))
	} else {
		s.writeThrough(ctx, logger, requestID, resp)
	}

	span.SetAttributes(
		attribute.Bool("cached", false),
		attribute.Int("succeeded", len(resp.SucceededTickers)),
		attribute.Int("failed", len(resp.FailedTickers)),
	)
	s.stage(ctx, logger, requestID, StageRespond,
		slog.Bool("cached", false),
		slog.Duration("duration", s.now().Sub(started)))
	s.metrics.RecordAnalysis(ctx, s.now().Sub(started), false, outcome(resp))
	return resp, nil
}

// runTickers fans the per-ticker pipeline out. Every ticker shares one
// deadline taken before the fan-out, so a ticker queued behind the
// concurrency limit gets no extra time and total latency stays within one
// fetch timeout. It returns early only when ctx itself is cancelled.
func (s *AnalysisService) runTickers(ctx context.Context, logger *slog.Logger, requestID string, req domain.AnalysisRequest) ([]tickerResult, error) {
	s.stage(ctx, logger, requestID, StageFetching, slog.Int("tickers", len(req.Tickers)))

	results := make([]tickerResult, len(req.Tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrentFetches)

	// wall clock, not s.now: context deadlines are measured against it
	deadline := time.Now().Add(s.opts.FetchTimeout)

	for i, ticker := range req.Tickers {
		g.Go(func() error {
			tctx, cancel := context.WithDeadline(gctx, deadline)
			defer cancel()

			results[i] = s.processTicker(tctx, logger, requestID, ticker, req)
			s.metrics.RecordTicker(ctx, ticker, results[i].err)
			// ticker failures are collected, not propagated
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.WarnContext(ctx, "analysis cancelled by caller", slog.String("error", err.Error()))
		return nil, err
	}
	return results, nil
}

func (s *AnalysisService) processTicker(ctx context.Context, logger *slog.Logger, requestID, ticker string, req domain.AnalysisRequest) tickerResult {
	ctx, span := s.tracer.Start(ctx, "analysis.ticker", trace.WithAttributes(attribute.String("ticker", ticker)))
	defer span.End()

	fail := func(stage Stage, err error) tickerResult {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "ticker failed",
			slog.String("ticker", ticker),
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()))
		s.progress.TickerFailed(requestID, ticker, stage, err)
		return tickerResult{err: err}
	}

	s.progress.TickerStage(requestID, ticker, StageFetching)
	raw, err := s.fetcher.Fetch(ctx, ticker, req.Start(), req.End(), req.Interval)
	if err != nil {
		var fetchErr *apierrors.FetchError
		if !errors.As(err, &fetchErr) {
			err = apierrors.NewFetchError(ticker, err)
		}
		return fail(StageFetching, err)
	}

	s.progress.TickerStage(requestID, ticker, StageNormalizing)
	series, err := s.normalizer.Normalize(ticker, req.Interval, raw)
	if err != nil {
		return fail(StageNormalizing, err)
	}

	s.progress.TickerStage(requestID, ticker, StageComputing)
	metrics, err := s.calculator.Compute(series)
	if err != nil {
		return fail(StageComputing, err)
	}

	s.progress.TickerDone(requestID, ticker, series.Len())
	return tickerResult{series: series, metrics: metrics}
}

// assemble builds the response from per-ticker results in request order. It
// returns nil when no ticker succeeded, and reports whether any failure was
// transient.
func (s *AnalysisService) assemble(ctx context.Context, logger *slog.Logger, requestID string, req domain.AnalysisRequest,
	key string, results []tickerResult) (*domain.AnalysisResponse, bool) {
	resp := &domain.AnalysisResponse{
		RequestID:        requestID,
		Tickers:          req.Tickers,
		DateRange:        req.DateRange(),
		Interval:         req.Interval,
		Metrics:          make(map[string]domain.MetricsResult),
		HistoricalData:   make(map[string][]domain.Bar),
		SucceededTickers: []string{},
		FailedTickers:    []string{},
		CacheKey:         key,
		Timestamp:        s.now().UTC(),
	}

	var (
		series    []domain.TickerSeries
		retryable bool
	)
	for i, ticker := range req.Tickers {
		r := results[i]
		if r.err != nil {
			resp.FailedTickers = append(resp.FailedTickers, ticker)
			if resp.Failures == nil {
				resp.Failures = make(map[string]string)
			}
			resp.Failures[ticker] = r.err.Error()
			retryable = retryable || transient(r.err)
			continue
		}
		resp.SucceededTickers = append(resp.SucceededTickers, ticker)
		resp.Metrics[ticker] = r.metrics
		resp.HistoricalData[ticker] = r.series.Bars
		series = append(series, r.series)
	}

	if len(series) == 0 {
		return nil, retryable
	}

	if len(series) > 1 {
		s.stage(ctx, logger, requestID, StageComputing, slog.Int("correlated_series", len(series)))
		resp.CorrelationMatrix = s.calculator.Correlate(series)
	}
	return resp, retryable
}

func (s *AnalysisService) writeThrough(ctx context.Context, logger *slog.Logger, requestID string, resp *domain.AnalysisResponse) {
	s.stage(ctx, logger, requestID, StageCacheWrite, slog.String("cache_key", resp.CacheKey))

	entry := &domain.CacheEntry{
		Key:               resp.CacheKey,
		Tickers:           resp.Tickers,
		DateRange:         resp.DateRange,
		Interval:          resp.Interval,
		Metrics:           resp.Metrics,
		CorrelationMatrix: resp.CorrelationMatrix,
		HistoricalData:    resp.HistoricalData,
		SucceededTickers:  resp.SucceededTickers,
		FailedTickers:     resp.FailedTickers,
		Failures:          resp.Failures,
	}
	if err := s.cache.Put(ctx, entry); err != nil {
		logger.WarnContext(ctx, "cache write failed, response unaffected",
			slog.String("cache_key", resp.CacheKey),
			slog.String("error", err.Error()))
		infrastructure.RecordError(ctx, err)
	}
}

// CacheStats reports the result cache contents
func (s *AnalysisService) CacheStats(ctx context.Context) (domain.CacheStats, error) {
	return s.cache.Stats(ctx)
}

// CacheClear removes every cached analysis and returns how many were deleted
func (s *AnalysisService) CacheClear(ctx context.Context) (int, error) {
	deleted, err := s.cache.ClearAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "cache clear failed",
			slog.Int("deleted", deleted),
			slog.String("error", err.Error()))
		return deleted, err
	}
	return deleted, nil
}

func (s *AnalysisService) stage(ctx context.Context, logger *slog.Logger, requestID string, stage Stage, attrs ...any) {
	logger.DebugContext(ctx, "analysis stage", append([]any{slog.String("stage", string(stage))}, attrs...)...)
	infrastructure.AddSpanEvent(ctx, "stage."+string(stage))
	s.progress.Stage(requestID, stage)
}

func responseFromEntry(entry *domain.CacheEntry, requestID string, now time.Time) *domain.AnalysisResponse {
	return &domain.AnalysisResponse{
		RequestID:         requestID,
		Tickers:           entry.Tickers,
		DateRange:         entry.DateRange,
		Interval:          entry.Interval,
		Metrics:           entry.Metrics,
		CorrelationMatrix: entry.CorrelationMatrix,
		HistoricalData:    entry.HistoricalData,
		SucceededTickers:  entry.SucceededTickers,
		FailedTickers:     entry.FailedTickers,
		Failures:          entry.Failures,
		Cached:            true,
		CacheKey:          entry.Key,
		Timestamp:         now.UTC(),
	}
}

func failureMessages(tickers []string, results []tickerResult) map[string]string {
	failures := make(map[string]string, len(tickers))
	for i, t := range tickers {
		if results[i].err != nil {
			failures[t] = results[i].err.Error()
		}
	}
	return failures
}

// transient reports failures that may not recur: anything but an unknown
// ticker or unusable data.
func transient(err error) bool {
	return !errors.Is(err, apierrors.ErrTickerNotFound) && !errors.Is(err, apierrors.ErrData)
}

func outcome(resp *domain.AnalysisResponse) string {
	if len(resp.FailedTickers) > 0 {
		return OutcomePartial
	}
	return OutcomeSuccess
}
