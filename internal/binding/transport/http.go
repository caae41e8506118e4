// Package transport provides HTTP handlers for the binding domain.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/ethbinder/internal/badge"
	"github.com/pendergraft/ethbinder/internal/binding/domain"
)

// Service defines the verification service interface for HTTP transport.
type Service interface {
	Verify(ctx context.Context, req domain.Request) *domain.Result
}

// Handler handles badge HTTP requests.
type Handler struct {
	svc       Service
	responder *badge.Responder
}

// NewHandler creates a new badge HTTP handler.
func NewHandler(svc Service, responder *badge.Responder) *Handler {
	return &Handler{svc: svc, responder: responder}
}

// RegisterRoutes registers the badge routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleBadge)
	r.Get("/badge", h.handleBadge)
	r.Get("/api/v1/verify", h.handleVerify)
}

func (h *Handler) handleBadge(w http.ResponseWriter, r *http.Request) {
	res := h.svc.Verify(r.Context(), parseRequest(r))
	if err := h.responder.Respond(res).Write(w); err != nil {
		slog.Debug("writing badge", "error", err)
	}
}

// handleVerify returns the raw verification result instead of a badge.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	res := h.svc.Verify(r.Context(), parseRequest(r))
	writeJSON(w, badge.Status(res.Outcome), res)
}

func parseRequest(r *http.Request) domain.Request {
	q := r.URL.Query()
	return domain.Request{
		Handle:  q.Get("handle"),
		Repo:    q.Get("repo"),
		Debug:   q.Get("debug") == "true",
		Referer: r.Referer(),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
