package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/clock"
	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/middleware"
	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*model.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actor service.Actor) (*model.Order, error)
	ListMine(ctx context.Context, actor service.Actor, status string, limit, offset int) ([]model.Order, error)
	ListForDate(ctx context.Context, date time.Time) ([]model.Order, error)
	ListForCompany(ctx context.Context, companyID uuid.UUID, month, year int, actor service.Actor) ([]model.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, targetStatus string, actor service.Actor, now time.Time, rider *service.RiderAssignment) (*model.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor service.Actor, now time.Time) (*model.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc      OrderServicer
	resolver *clock.Resolver
	logger   *zap.SugaredLogger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, resolver *clock.Resolver, logger *zap.SugaredLogger) *OrderHandler {
	return &OrderHandler{svc: svc, resolver: resolver, logger: logger}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/today", h.Today)
	r.With(middleware.RequireRole(enum.RoleCompanyAdmin, enum.RoleAdmin)).
		Get("/company", h.ListCompany)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Cancel)
	r.With(middleware.RequireRole(enum.RoleAdmin, enum.RoleKitchen)).
		Put("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type createOrderRequest struct {
	MealID          string `json:"meal_id"`
	Quantity        int32  `json:"quantity"`
	DeliveryDate    string `json:"delivery_date"`
	DeliveryAddress string `json:"delivery_address"`
	Notes           string `json:"notes"`
}

type orderResponse struct {
	ID               uuid.UUID  `json:"id"`
	OrderNumber      string     `json:"order_number"`
	StaffID          uuid.UUID  `json:"staff_id"`
	MealID           uuid.UUID  `json:"meal_id"`
	Quantity         int32      `json:"quantity"`
	Price            string     `json:"price"`
	PriceKobo        int64      `json:"price_kobo"`
	DeliveryDate     string     `json:"delivery_date"`
	DeliveryAddress  string     `json:"delivery_address"`
	Notes            string     `json:"notes"`
	Status           string     `json:"status"`
	ConfirmedAt      *time.Time `json:"confirmed_at"`
	PreparingAt      *time.Time `json:"preparing_at"`
	OutForDeliveryAt *time.Time `json:"out_for_delivery_at"`
	DeliveredAt      *time.Time `json:"delivered_at"`
	CancelledAt      *time.Time `json:"cancelled_at"`
	RiderName        string     `json:"rider_name,omitempty"`
	RiderPhone       string     `json:"rider_phone,omitempty"`
	IsPaid           bool       `json:"is_paid"`
	CreatedAt        time.Time  `json:"created_at"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status     string `json:"status"`
	RiderName  string `json:"rider_name"`
	RiderPhone string `json:"rider_phone"`
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		StaffID:          o.StaffID,
		MealID:           o.MealID,
		Quantity:         o.Quantity,
		Price:            naira(o.Price),
		PriceKobo:        o.Price,
		DeliveryDate:     o.DeliveryDate.Format("2006-01-02"),
		DeliveryAddress:  o.DeliveryAddress,
		Notes:            o.Notes,
		Status:           o.Status,
		ConfirmedAt:      o.ConfirmedAt,
		PreparingAt:      o.PreparingAt,
		OutForDeliveryAt: o.OutForDeliveryAt,
		DeliveredAt:      o.DeliveredAt,
		CancelledAt:      o.CancelledAt,
		RiderName:        o.RiderName,
		RiderPhone:       o.RiderPhone,
		IsPaid:           o.IsPaid,
		CreatedAt:        o.CreatedAt,
	}
}

func actorFromRequest(r *http.Request) (service.Actor, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Actor{}, false
	}
	return service.Actor{
		StaffID:   claims.StaffID,
		CompanyID: claims.CompanyID,
		Role:      claims.Role,
	}, true
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	mealID, err := uuid.Parse(req.MealID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid meal_id"})
		return
	}
	deliveryDate, err := time.Parse("2006-01-02", req.DeliveryDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid delivery_date format, use YYYY-MM-DD"})
		return
	}

	order, err := h.svc.Create(r.Context(), service.CreateOrderRequest{
		StaffID:         actor.StaffID,
		MealID:          mealID,
		Quantity:        req.Quantity,
		DeliveryDate:    deliveryDate,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// List handles GET /orders: the caller's own orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	orders, err := h.svc.ListMine(r.Context(), actor, r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.logger.Errorw("list orders failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// todayGroup is one meal's roll-up in the kitchen view.
type todayGroup struct {
	MealID        uuid.UUID       `json:"meal_id"`
	TotalQuantity int32           `json:"total_quantity"`
	Orders        []orderResponse `json:"orders"`
}

// Today handles GET /orders/today: all of today's active orders grouped by
// meal, for kitchen prep.
func (h *OrderHandler) Today(w http.ResponseWriter, r *http.Request) {
	today := h.resolver.DateOf(time.Now())
	orders, err := h.svc.ListForDate(r.Context(), today)
	if err != nil {
		h.logger.Errorw("list today orders failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	byMeal := make(map[uuid.UUID]*todayGroup)
	var groups []*todayGroup
	for i := range orders {
		o := &orders[i]
		g, ok := byMeal[o.MealID]
		if !ok {
			g = &todayGroup{MealID: o.MealID}
			byMeal[o.MealID] = g
			groups = append(groups, g)
		}
		g.TotalQuantity += o.Quantity
		g.Orders = append(g.Orders, toOrderResponse(o))
	}
	if groups == nil {
		groups = []*todayGroup{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":  today.Format("2006-01-02"),
		"meals": groups,
	})
}

// ListCompany handles GET /orders/company: a company admin's view of the
// whole company's orders for one billing month. Defaults to the current
// business-local month; admins may pass company_id to inspect any company.
func (h *OrderHandler) ListCompany(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}

	companyID := actor.CompanyID
	if s := r.URL.Query().Get("company_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid company_id"})
			return
		}
		companyID = id
	}

	local := h.resolver.Local(time.Now())
	month, year := int(local.Month()), local.Year()
	if s := r.URL.Query().Get("month"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 12 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid month"})
			return
		}
		month = v
	}
	if s := r.URL.Query().Get("year"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 2000 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid year"})
			return
		}
		year = v
	}

	orders, err := h.svc.ListForCompany(r.Context(), companyID, month, year, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": resp,
		"month":  month,
		"year":   year,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid order ID"})
		return
	}

	order, err := h.svc.Get(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdateStatus handles PUT /orders/{id}/status: manual transition by
// admin or kitchen staff.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "status is required"})
		return
	}

	var rider *service.RiderAssignment
	if req.RiderName != "" {
		rider = &service.RiderAssignment{RiderName: req.RiderName, RiderPhone: req.RiderPhone}
	}

	order, err := h.svc.Transition(r.Context(), id, req.Status, actor, time.Now(), rider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Cancel handles DELETE /orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid order ID"})
		return
	}

	order, err := h.svc.Cancel(r.Context(), id, actor, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
