package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nourishbox/api/internal/model"
)

// RecommendServicer defines the service methods needed by the
// recommendation handler. Satisfied by *service.RecommendService.
type RecommendServicer interface {
	Get(ctx context.Context, staffID uuid.UUID, now time.Time) ([]model.RankedMeal, error)
	Invalidate(ctx context.Context, staffID uuid.UUID) error
}

// RecommendHandler handles recommendation endpoints.
type RecommendHandler struct {
	svc RecommendServicer
}

// NewRecommendHandler creates a new RecommendHandler.
func NewRecommendHandler(svc RecommendServicer) *RecommendHandler {
	return &RecommendHandler{svc: svc}
}

// RegisterRoutes registers recommendation endpoints on the given Chi router.
func (h *RecommendHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Invalidate)
}

// Get handles GET /recommendations: the caller's ranked meals, served from
// cache when fresh.
func (h *RecommendHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}

	ranked, err := h.svc.Get(r.Context(), actor.StaffID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	if ranked == nil {
		ranked = []model.RankedMeal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": ranked})
}

// Invalidate handles DELETE /recommendations: drops the caller's cached
// ranking so the next read recomputes. Called after profile edits.
func (h *RecommendHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}
	if err := h.svc.Invalidate(r.Context(), actor.StaffID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}
