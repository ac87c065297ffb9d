// Package services implements the business logic layer of the analytics
// engine. Handlers and the CLI call into it; it calls the fetcher, the
// analytics calculator and the result cache.
//
// # Available Services
//
//	- AnalysisService: validates a request, serves it from the cache or
//	  fetches every ticker concurrently, computes metrics and correlations,
//	  and writes the result through to the cache
//	- HealthService: liveness, readiness and version reporting
//	- ProgressReporter: broadcasts analysis stage changes over the WebSocket hub
//
// # Analysis Flow
//
//	received → cache_lookup → fetching → normalizing → computing → caching → done
//
// A ticker that fails at any stage is dropped from the response and listed
// in failed_tickers. The request only fails when every ticker fails.
//
// # Error Handling
//
// Services return the typed errors from internal/errors so that handlers
// can map them onto problem responses:
//
//	- *errors.ValidationError for a rejected request
//	- *errors.UpstreamDataError when no ticker produced data
//	- context errors when the request deadline expires
//
// Cache failures never fail a request. They are logged, counted and the
// result is computed without the cache.
//
// # Testing
//
// Services are tested by mocking dependencies:
//
//	hub := &MockWebSocketHub{}
//	hub.On("Broadcast", mock.Anything, mock.Anything).Return()
//	svc := NewAnalysisService(fetcher.NewMockFetcher(), rc, NewProgressReporter(hub), nil, opts, logger)
package services
