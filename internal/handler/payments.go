package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/middleware"
	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/paystack"
	"github.com/nourishbox/api/internal/repository"
	"github.com/nourishbox/api/internal/service"
)

// maxWebhookBody bounds the raw webhook payload we are willing to read.
const maxWebhookBody = 1 << 20

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService; narrow interface for testability.
type PaymentServicer interface {
	Initialize(ctx context.Context, invoiceID uuid.UUID, actor service.Actor) (*paystack.InitializeResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature string, now time.Time) error
	VerifyAndApply(ctx context.Context, reference string, now time.Time) (*model.Invoice, error)
	RefundOrder(ctx context.Context, orderID uuid.UUID, reason string, now time.Time) (*service.RefundRecord, error)
	SpendingSummary(ctx context.Context, companyID uuid.UUID, actor service.Actor) (*repository.InvoiceStats, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc    PaymentServicer
	logger *zap.SugaredLogger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer, logger *zap.SugaredLogger) *PaymentHandler {
	return &PaymentHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the authenticated payment endpoints. The
// webhook is registered separately: the provider does not send a JWT.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/initialize", h.Initialize)
	r.Get("/verify/{reference}", h.Verify)
	r.Get("/spending-summary", h.SpendingSummary)
	r.With(middleware.RequireRole(enum.RoleAdmin)).Post("/refund", h.Refund)
}

// RegisterWebhook registers the unauthenticated provider callback.
func (h *PaymentHandler) RegisterWebhook(r chi.Router) {
	r.Post("/payments/webhook", h.Webhook)
}

// --- Request / Response types ---

type initializeRequest struct {
	InvoiceID string `json:"invoice_id"`
}

type refundRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// --- Handlers ---

// Initialize handles POST /payments/initialize.
func (h *PaymentHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}

	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid invoice_id"})
		return
	}

	res, err := h.svc.Initialize(r.Context(), invoiceID, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"authorization_url": res.AuthorizationURL,
		"access_code":       res.AccessCode,
		"reference":         res.Reference,
	})
}

// Webhook handles POST /payments/webhook. The body is read raw: the HMAC
// covers the exact bytes the provider sent. A bad signature is a 401; any
// accepted event returns 200 so the provider stops retrying.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body"})
		return
	}

	err = h.svc.HandleWebhook(r.Context(), body, r.Header.Get("x-paystack-signature"), time.Now())
	if err != nil {
		h.logger.Warnw("webhook rejected", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Verify handles GET /payments/verify/{reference}: the browser callback
// path, a fallback to the webhook.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "reference is required"})
		return
	}

	inv, err := h.svc.VerifyAndApply(r.Context(), reference, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// Refund handles POST /payments/refund.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid order_id"})
		return
	}
	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "reason is required"})
		return
	}

	rec, err := h.svc.RefundOrder(r.Context(), orderID, req.Reason, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":     rec.OrderID,
		"order_number": rec.OrderNumber,
		"amount":       naira(rec.Amount),
		"amount_kobo":  rec.Amount,
		"reason":       rec.Reason,
		"provider_ref": rec.ProviderRef,
		"refunded_at":  rec.RefundedAt,
	})
}

// SpendingSummary handles GET /payments/spending-summary for the caller's
// company.
func (h *PaymentHandler) SpendingSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}

	stats, err := h.svc.SpendingSummary(r.Context(), actor.CompanyID, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_invoiced":    naira(stats.TotalInvoiced),
		"total_paid":        naira(stats.TotalPaid),
		"total_outstanding": naira(stats.TotalOutstanding),
		"invoice_count":     stats.InvoiceCount,
		"paid_count":        stats.PaidCount,
		"overdue_count":     stats.OverdueCount,
	})
}
