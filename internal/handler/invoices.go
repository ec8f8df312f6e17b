package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/service"
)

// InvoiceServicer defines the service methods needed by invoice handlers.
// Satisfied by *service.InvoiceService; narrow interface for testability.
type InvoiceServicer interface {
	Get(ctx context.Context, invoiceID uuid.UUID, actor service.Actor) (*model.Invoice, []model.Order, error)
	ListForCompany(ctx context.Context, companyID uuid.UUID, actor service.Actor) ([]model.Invoice, error)
	Generate(ctx context.Context, companyID uuid.UUID, month, year int, now time.Time) (*model.Invoice, error)
}

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	svc    InvoiceServicer
	logger *zap.SugaredLogger
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(svc InvoiceServicer, logger *zap.SugaredLogger) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers invoice endpoints on the given Chi router.
func (h *InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterAdminRoutes registers the manual generation endpoint. The
// scheduler covers the normal path; this is for backfills.
func (h *InvoiceHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/generate", h.Generate)
}

// --- Response types ---

type invoiceResponse struct {
	ID                uuid.UUID  `json:"id"`
	InvoiceNumber     string     `json:"invoice_number"`
	CompanyID         uuid.UUID  `json:"company_id"`
	BillingMonth      int        `json:"billing_month"`
	BillingYear       int        `json:"billing_year"`
	Subtotal          string     `json:"subtotal"`
	Tax               string     `json:"tax"`
	Total             string     `json:"total"`
	SubtotalKobo      int64      `json:"subtotal_kobo"`
	TaxKobo           int64      `json:"tax_kobo"`
	TotalKobo         int64      `json:"total_kobo"`
	Status            string     `json:"status"`
	DueDate           time.Time  `json:"due_date"`
	PaidAt            *time.Time `json:"paid_at"`
	ProviderReference string     `json:"provider_reference,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toInvoiceResponse(inv *model.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:                inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		CompanyID:         inv.CompanyID,
		BillingMonth:      inv.BillingMonth,
		BillingYear:       inv.BillingYear,
		Subtotal:          naira(inv.Subtotal),
		Tax:               naira(inv.Tax),
		Total:             naira(inv.Total),
		SubtotalKobo:      inv.Subtotal,
		TaxKobo:           inv.Tax,
		TotalKobo:         inv.Total,
		Status:            inv.Status,
		DueDate:           inv.DueDate,
		PaidAt:            inv.PaidAt,
		ProviderReference: inv.ProviderReference,
		CreatedAt:         inv.CreatedAt,
	}
}

// --- Handlers ---

// List handles GET /invoices for the caller's company.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}

	invoices, err := h.svc.ListForCompany(r.Context(), actor.CompanyID, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]invoiceResponse, len(invoices))
	for i := range invoices {
		resp[i] = toInvoiceResponse(&invoices[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": resp})
}

// Get handles GET /invoices/{id}: the invoice plus its claimed orders.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid invoice ID"})
		return
	}

	inv, orders, err := h.svc.Get(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	orderResps := make([]orderResponse, len(orders))
	for i := range orders {
		orderResps[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"invoice": toInvoiceResponse(inv),
		"orders":  orderResps,
	})
}

type generateRequest struct {
	CompanyID string `json:"company_id"`
	Month     int    `json:"month"`
	Year      int    `json:"year"`
}

// Generate handles POST /invoices/generate: a manual backfill run for one
// company and month.
func (h *InvoiceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	companyID, err := uuid.Parse(req.CompanyID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid company_id"})
		return
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 2000 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid billing month/year"})
		return
	}

	inv, err := h.svc.Generate(r.Context(), companyID, req.Month, req.Year, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	if inv == nil {
		writeJSON(w, http.StatusOK, map[string]any{"invoice": nil, "message": "nothing to invoice"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": toInvoiceResponse(inv)})
}
