package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"stockpulse/internal/blobstore"
	"stockpulse/internal/cache"
	"stockpulse/internal/config"
	apierrors "stockpulse/internal/errors"
	"stockpulse/internal/fetcher"
	"stockpulse/internal/infrastructure"
	customMiddleware "stockpulse/internal/middleware"
	"stockpulse/internal/scheduler"
	"stockpulse/internal/services"
	handlers "stockpulse/internal/transport/http"
	ws "stockpulse/internal/websocket"
)

// Application is the main application container
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Router *chi.Mux
	Server *http.Server

	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.AnalysisMetrics

	Store         blobstore.Store
	Cache         *cache.ResultCache
	Fetcher       fetcher.DataFetcher
	WebSocketHub  *ws.Hub
	Analysis      *services.AnalysisService
	HealthService *services.HealthService
	Scheduler     *scheduler.Scheduler
	ErrorHandler  *apierrors.ErrorHandler

	hubCancel context.CancelFunc
}

// New creates an application with every dependency wired. Nothing runs in
// the background until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	otelProviders, err := infrastructure.InitializeOTel(cfg.OTel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewAnalysisMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := a.initializeServices(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

func (a *Application) initializeServices(ctx context.Context) error {
	store, err := blobstore.New(ctx, a.Config.Cache, a.Logger)
	if err != nil {
		return err
	}
	a.Store = store

	a.Cache = cache.New(store,
		cache.WithEnabled(a.Config.Cache.Enabled),
		cache.WithTTL(a.Config.Cache.TTL()),
		cache.WithPrefix(a.Config.Cache.Prefix),
		cache.WithBackendName(a.Config.Cache.Backend),
		cache.WithLogger(a.Logger),
		cache.WithMetrics(a.Metrics),
	)

	f, err := fetcher.New(a.Config.Analysis, a.Logger)
	if err != nil {
		return err
	}
	a.Fetcher = f

	a.WebSocketHub = ws.NewHub(a.Logger, a.Metrics)

	a.Analysis = services.NewAnalysisService(
		f,
		a.Cache,
		services.NewProgressReporter(a.WebSocketHub),
		a.Metrics,
		services.AnalysisOptionsFromConfig(a.Config.Analysis),
		a.Logger,
	)

	var cachePinger services.Pinger
	if a.Cache.Enabled() {
		cachePinger = a.Cache
	}
	a.HealthService = services.NewHealthService(
		config.AppVersion,
		f.Name(),
		a.Config.Cache.Backend,
		cachePinger,
		a.WebSocketHub,
		a.Logger,
	)

	if a.Cache.Enabled() && a.Config.Cache.SweepSchedule != "" {
		a.Scheduler = scheduler.NewScheduler(context.WithoutCancel(ctx), a.Cache, a.Logger)
		if err := a.Scheduler.RegisterSweep(a.Config.Cache.SweepSchedule); err != nil {
			return err
		}
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// RequestID must run first so every later log line carries it
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket upgrades must not go through response-wrapping middleware
	r.Handle("/ws", ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → security → CORS → rate limit → Timeout
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
			}))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.ErrorHandler,
				a.Logger,
			).Handler)
		}
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/health", handlers.NewHealthHandler(a.HealthService, a.Logger).Routes())

		validator := customMiddleware.NewValidator(a.Logger)
		r.Route("/api/v1", func(r chi.Router) {
			r.Mount("/analyze", handlers.NewAnalysisHandler(a.Analysis, validator, a.Logger, a.ErrorHandler).Routes())
			r.Mount("/cache", handlers.NewCacheHandler(a.Analysis, a.Logger, a.ErrorHandler).Routes())
		})
	})

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start launches the hub, the scheduler and the HTTP server. Server errors
// other than a clean shutdown are reported on the returned channel.
func (a *Application) Start(ctx context.Context) <-chan error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", a.Config.Server.Port),
		slog.String("fetcher", a.Fetcher.Name()),
		slog.String("cache_backend", a.Config.Cache.Backend),
		slog.Bool("cache_enabled", a.Cache.Enabled()))

	hubCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.hubCancel = cancel
	go a.WebSocketHub.Run(hubCtx)

	if a.Scheduler != nil {
		a.Scheduler.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return errCh
}

// Stop gracefully stops the server and background services
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if a.Scheduler != nil {
		a.Scheduler.Stop(shutdownCtx)
	}
	if a.hubCancel != nil {
		a.hubCancel()
	}
	a.WebSocketHub.Stop()

	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return errors.Join(errs...)
}

// Close releases the blob store and flushes telemetry. It is safe to call
// on a partially initialized application and more than once.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		if err := blobstore.Close(a.Store); err != nil {
			errs = append(errs, fmt.Errorf("close blob store: %w", err))
		}
		a.Store = nil
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
		a.OTelProviders = nil
	}
	return errors.Join(errs...)
}

// Run serves until ctx is cancelled, a termination signal arrives or the
// server fails.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := a.Start(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "received shutdown signal")
	case serveErr = <-errCh:
		if serveErr != nil {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", serveErr.Error()))
		}
	}

	return errors.Join(serveErr, a.Stop(ctx))
}
