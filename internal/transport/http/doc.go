// Package http implements the HTTP handlers of the analytics API. Handlers
// stay thin: they decode and validate requests, call the service layer and
// render either the result or an RFC 7807 problem via errors.ErrorHandler.
//
// # Routes
//
//	POST   /api/v1/analyze          run an analysis (JSON body)
//	GET    /api/v1/analyze/export   run an analysis and download it as XLSX or CSV
//	GET    /api/v1/cache/stats      cache namespace statistics
//	DELETE /api/v1/cache            delete every cache entry
//	GET    /health                  liveness summary
//	GET    /health/ready            readiness including the cache backend
//
// Each handler exposes Routes() returning a chi.Router that the application
// mounts under its prefix.
package http
