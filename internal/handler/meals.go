package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/repository"
)

// MealStore defines the database methods needed by meal handlers.
// Satisfied by *repository.Postgres; narrow interface for testability.
type MealStore interface {
	CreateMeal(ctx context.Context, m *model.Meal) (uuid.UUID, error)
	UpdateMeal(ctx context.Context, m *model.Meal) error
	DisableMeal(ctx context.Context, id uuid.UUID) error
	GetMeal(ctx context.Context, id uuid.UUID) (*model.Meal, error)
	ListMeals(ctx context.Context, availableOnly bool) ([]model.Meal, error)
}

// MealHandler handles menu endpoints.
type MealHandler struct {
	store  MealStore
	logger *zap.SugaredLogger
}

// NewMealHandler creates a new MealHandler.
func NewMealHandler(store MealStore, logger *zap.SugaredLogger) *MealHandler {
	return &MealHandler{store: store, logger: logger}
}

// RegisterRoutes registers the read endpoints; RegisterAdminRoutes the
// mutating ones. The router wires the role middleware.
func (h *MealHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterAdminRoutes registers the admin-only meal endpoints.
func (h *MealHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Disable)
}

// --- Request / Response types ---

type mealRequest struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	Cuisine          string   `json:"cuisine"`
	Calories         int32    `json:"calories"`
	Protein          int32    `json:"protein"`
	Carbs            int32    `json:"carbs"`
	Fats             int32    `json:"fats"`
	Fiber            int32    `json:"fiber"`
	Sugar            int32    `json:"sugar"`
	Sodium           int32    `json:"sodium"`
	Ingredients      []string `json:"ingredients"`
	ImageURL         string   `json:"image_url"`
	BasePrice        int64    `json:"base_price"`
	IsAvailable      *bool    `json:"is_available"`
	AvailableDays    []int32  `json:"available_days"`
	MaxDailyCapacity *int32   `json:"max_daily_capacity"`
}

type mealResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Cuisine          string    `json:"cuisine"`
	Calories         int32     `json:"calories"`
	Protein          int32     `json:"protein"`
	Carbs            int32     `json:"carbs"`
	Fats             int32     `json:"fats"`
	Fiber            int32     `json:"fiber"`
	Sugar            int32     `json:"sugar"`
	Sodium           int32     `json:"sodium"`
	Ingredients      []string  `json:"ingredients"`
	ImageURL         string    `json:"image_url"`
	BasePrice        string    `json:"base_price"`
	BasePriceKobo    int64     `json:"base_price_kobo"`
	IsAvailable      bool      `json:"is_available"`
	AvailableDays    []int32   `json:"available_days"`
	MaxDailyCapacity *int32    `json:"max_daily_capacity"`
	CreatedAt        time.Time `json:"created_at"`
}

func toMealResponse(m *model.Meal) mealResponse {
	return mealResponse{
		ID:               m.ID,
		Name:             m.Name,
		Description:      m.Description,
		Category:         m.Category,
		Cuisine:          m.Cuisine,
		Calories:         m.Calories,
		Protein:          m.Protein,
		Carbs:            m.Carbs,
		Fats:             m.Fats,
		Fiber:            m.Fiber,
		Sugar:            m.Sugar,
		Sodium:           m.Sodium,
		Ingredients:      m.Ingredients,
		ImageURL:         m.ImageURL,
		BasePrice:        naira(m.BasePrice),
		BasePriceKobo:    m.BasePrice,
		IsAvailable:      m.IsAvailable,
		AvailableDays:    m.AvailableDays,
		MaxDailyCapacity: m.MaxDailyCapacity,
		CreatedAt:        m.CreatedAt,
	}
}

func validateMealRequest(req *mealRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if req.BasePrice <= 0 {
		return "base_price must be > 0 (kobo)"
	}
	for _, d := range req.AvailableDays {
		if d < 0 || d > 6 {
			return "available_days entries must be 0..6 (Sunday=0)"
		}
	}
	if req.MaxDailyCapacity != nil && *req.MaxDailyCapacity < 1 {
		return "max_daily_capacity must be >= 1 when set"
	}
	return ""
}

// --- Handlers ---

// List handles GET /meals. ?available=true narrows to orderable meals.
func (h *MealHandler) List(w http.ResponseWriter, r *http.Request) {
	availableOnly := r.URL.Query().Get("available") == "true"
	meals, err := h.store.ListMeals(r.Context(), availableOnly)
	if err != nil {
		h.logger.Errorw("list meals failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	resp := make([]mealResponse, len(meals))
	for i := range meals {
		resp[i] = toMealResponse(&meals[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"meals": resp})
}

// Get handles GET /meals/{id}.
func (h *MealHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid meal ID"})
		return
	}
	meal, err := h.store.GetMeal(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "meal not found"})
			return
		}
		h.logger.Errorw("get meal failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toMealResponse(meal))
}

// Create handles POST /meals.
func (h *MealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req mealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if msg := validateMealRequest(&req); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
		return
	}

	meal := mealFromRequest(&req)
	if req.IsAvailable == nil {
		meal.IsAvailable = true
	}
	id, err := h.store.CreateMeal(r.Context(), meal)
	if err != nil {
		h.logger.Errorw("create meal failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	meal.ID = id
	writeJSON(w, http.StatusCreated, toMealResponse(meal))
}

// Update handles PUT /meals/{id}. Existing orders keep the price they were
// created with; only future orders see the edit.
func (h *MealHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid meal ID"})
		return
	}
	var req mealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if msg := validateMealRequest(&req); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
		return
	}

	existing, err := h.store.GetMeal(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "meal not found"})
			return
		}
		h.logger.Errorw("get meal for update failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	meal := mealFromRequest(&req)
	meal.ID = id
	if req.IsAvailable == nil {
		meal.IsAvailable = existing.IsAvailable
	}
	if err := h.store.UpdateMeal(r.Context(), meal); err != nil {
		h.logger.Errorw("update meal failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toMealResponse(meal))
}

// Disable handles DELETE /meals/{id}. Soft delete: the meal stops being
// orderable but stays referenced by historical orders.
func (h *MealHandler) Disable(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid meal ID"})
		return
	}
	if err := h.store.DisableMeal(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "meal not found"})
			return
		}
		h.logger.Errorw("disable meal failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

func mealFromRequest(req *mealRequest) *model.Meal {
	m := &model.Meal{
		Name:             req.Name,
		Description:      req.Description,
		Category:         req.Category,
		Cuisine:          req.Cuisine,
		Calories:         req.Calories,
		Protein:          req.Protein,
		Carbs:            req.Carbs,
		Fats:             req.Fats,
		Fiber:            req.Fiber,
		Sugar:            req.Sugar,
		Sodium:           req.Sodium,
		Ingredients:      req.Ingredients,
		ImageURL:         req.ImageURL,
		BasePrice:        req.BasePrice,
		AvailableDays:    req.AvailableDays,
		MaxDailyCapacity: req.MaxDailyCapacity,
	}
	if req.IsAvailable != nil {
		m.IsAvailable = *req.IsAvailable
	}
	return m
}
