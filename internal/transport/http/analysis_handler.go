package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "stockpulse/internal/errors"
	"stockpulse/internal/exporter"
	mw "stockpulse/internal/middleware"
	"stockpulse/pkg/contracts/domain"
)

// AnalysisHandler serves analysis requests
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	validator    *mw.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service AnalysisServiceInterface, validator *mw.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the analysis routes
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(mw.ContentTypeValidator(h.errorHandler, "application/json")).Post("/", h.Analyze)
	r.Get("/export", h.Export)
	return r
}

// Analyze handles POST /api/v1/analyze
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req domain.AnalysisRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp, ok := h.run(w, r, req)
	if !ok {
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// Export handles GET /api/v1/analyze/export?tickers=AAPL,MSFT&start_date=...&end_date=...&interval=1d&format=xlsx
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format, err := exporter.ParseFormat(q.Get("format"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewValidationError("format", "must be one of: xlsx, csv"))
		return
	}

	req := domain.AnalysisRequest{
		Tickers:   splitTickers(q["tickers"]),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Interval:  domain.Interval(q.Get("interval")),
	}

	resp, ok := h.run(w, r, req)
	if !ok {
		return
	}

	// render into memory first so a failed export still yields a problem response
	var buf bytes.Buffer
	if err := exporter.Export(&buf, format, resp); err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("export analysis: %w", err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exporter.Filename(resp, format)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export write interrupted",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	}
}

// run normalizes, validates and executes req, rendering any error
func (h *AnalysisHandler) run(w http.ResponseWriter, r *http.Request, req domain.AnalysisRequest) (*domain.AnalysisResponse, bool) {
	reqID := middleware.GetReqID(r.Context())

	req = req.Normalize()
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}

	h.logger.InfoContext(r.Context(), "analysis requested",
		slog.String("request_id", reqID),
		slog.Any("tickers", req.Tickers),
		slog.String("start_date", req.StartDate),
		slog.String("end_date", req.EndDate),
		slog.String("interval", string(req.Interval)))

	resp, err := h.service.Analyze(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	return resp, true
}

// splitTickers accepts both ?tickers=A,B and repeated ?tickers=A&tickers=B
func splitTickers(values []string) []string {
	var out []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
