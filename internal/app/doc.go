// Package app wires the analytics server together and manages its lifecycle.
//
// # Initialization Flow
//
//	1. Initialize OpenTelemetry and the analysis metrics
//	2. Open the blob store selected by the cache configuration
//	3. Build the result cache, data fetcher and WebSocket hub
//	4. Create the analysis and health services
//	5. Set up middleware and routes
//	6. Register the cache sweep with the scheduler
//
// # Usage
//
//	application, err := app.New(ctx, cfg, logger)
//	if err != nil {
//		return err
//	}
//	defer application.Close(ctx)
//	return application.Run(ctx)
//
// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then drains
// in-flight requests, stops the hub and the scheduler and flushes telemetry.
// The CLI reuses New without Run to execute one-off analyses and cache
// administration against the same configuration.
//
// # Error Handling
//
// Initialization errors are returned to the caller. The app never calls
// os.Exit.
package app
