package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/repository"
)

// ProfileStore defines the database methods needed by profile handlers.
// Satisfied by *repository.Postgres; narrow interface for testability.
type ProfileStore interface {
	GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	SetStaffOnboarded(ctx context.Context, id uuid.UUID, onboarded bool) error
}

// CacheInvalidator drops a staff member's cached recommendations.
// Satisfied by *service.RecommendService.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, staffID uuid.UUID) error
}

// ProfileHandler handles staff profile endpoints.
type ProfileHandler struct {
	store  ProfileStore
	recs   CacheInvalidator
	logger *zap.SugaredLogger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(store ProfileStore, recs CacheInvalidator, logger *zap.SugaredLogger) *ProfileHandler {
	return &ProfileHandler{store: store, recs: recs, logger: logger}
}

// RegisterRoutes registers profile endpoints on the given Chi router.
func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Post("/complete", h.Complete)
}

// Get handles GET /profile: the caller's own staff record.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}

	staff, err := h.store.GetStaff(r.Context(), actor.StaffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "staff not found"})
			return
		}
		h.logger.Errorw("get profile failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(staff))
}

// Complete handles POST /profile/complete: marks the caller's health
// profile as done, which opens ordering for them, and drops their cached
// recommendations so the next read recomputes against the new profile.
func (h *ProfileHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}

	if err := h.store.SetStaffOnboarded(r.Context(), actor.StaffID, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "staff not found"})
			return
		}
		h.logger.Errorw("complete profile failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	// Stale rankings are tolerable; the flag flip is not allowed to fail
	// on cache trouble.
	if err := h.recs.Invalidate(r.Context(), actor.StaffID); err != nil {
		h.logger.Warnw("recommendation cache invalidation failed",
			"staff_id", actor.StaffID, "error", err)
	}

	staff, err := h.store.GetStaff(r.Context(), actor.StaffID)
	if err != nil {
		h.logger.Errorw("reload profile failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(staff))
}

func toStaffResponse(s *model.Staff) staffResponse {
	return staffResponse{
		ID:          s.ID.String(),
		Email:       s.Email,
		Name:        s.Name,
		CompanyID:   s.CompanyID.String(),
		Role:        s.Role,
		IsOnboarded: s.IsOnboarded,
	}
}
