package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/price-comparison-scraper/internal/comparison"
	"github.com/maltedev/price-comparison-scraper/internal/models"
)

type Comparer interface {
	Compare(ctx context.Context, productName string) (*comparison.Response, error)
}

type SelectorDetector interface {
	Detect(ctx context.Context, searchURL string) (*models.DetectedSelectors, error)
}

type Handlers struct {
	comparer Comparer
	detector SelectorDetector
	logger   *slog.Logger
}

func NewHandlers(comparer Comparer, detector SelectorDetector, logger *slog.Logger) *Handlers {
	return &Handlers{
		comparer: comparer,
		detector: detector,
		logger:   logger.With("component", "api"),
	}
}

// Routes mounts the API endpoints on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/compare", h.Compare)
		r.Post("/selectors/detect", h.DetectSelectors)
	})
}

// CompareRequest is the body of a comparison request.
type CompareRequest struct {
	ProductName string `json:"productName"`
}

// DetectRequest is the body of a selector detection request.
type DetectRequest struct {
	SearchURL string `json:"searchUrl"`
}

func (h *Handlers) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.comparer.Compare(r.Context(), req.ProductName)
	switch {
	case err == nil:
		h.respondJSON(w, http.StatusOK, resp)
	case errors.Is(err, comparison.ErrEmptyQuery):
		h.respondJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("comparison aborted", "query", req.ProductName, "error", err)
		h.respondError(w, http.StatusServiceUnavailable, comparison.MessageFailed)
	default:
		h.logger.Error("comparison failed", "query", req.ProductName, "error", err)
		if resp == nil {
			h.respondError(w, http.StatusInternalServerError, comparison.MessageFailed)
			return
		}
		h.respondJSON(w, http.StatusInternalServerError, resp)
	}
}

func (h *Handlers) DetectSelectors(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := url.Parse(strings.TrimSpace(req.SearchURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		h.respondError(w, http.StatusBadRequest, "searchUrl must be an absolute http(s) url")
		return
	}

	detected, err := h.detector.Detect(r.Context(), u.String())
	if err != nil {
		h.logger.Error("selector detection failed", "url", u.String(), "error", err)
		h.respondError(w, http.StatusBadGateway, "failed to load page")
		return
	}
	if detected == nil {
		h.respondJSON(w, http.StatusOK, map[string]bool{"detected": false})
		return
	}

	h.respondJSON(w, http.StatusOK, detected)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
