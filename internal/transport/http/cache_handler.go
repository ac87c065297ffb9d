package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "stockpulse/internal/errors"
)

// CacheHandler exposes cache administration
type CacheHandler struct {
	service      AnalysisServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *CacheHandler {
	return &CacheHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "cache_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the cache routes
func (h *CacheHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.Stats)
	r.Delete("/", h.Clear)
	return r
}

// Stats handles GET /api/v1/cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.CacheStats(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

// Clear handles DELETE /api/v1/cache
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.CacheClear(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "cache cleared",
		slog.Int("deleted", deleted),
		slog.String("request_id", middleware.GetReqID(r.Context())))

	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"deleted": deleted,
	})
}
