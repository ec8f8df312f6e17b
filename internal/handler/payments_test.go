package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/middleware"
	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/paystack"
	"github.com/nourishbox/api/internal/repository"
	"github.com/nourishbox/api/internal/service"
)

type mockPaymentServicer struct {
	initializeFn func(ctx context.Context, invoiceID uuid.UUID, actor service.Actor) (*paystack.InitializeResult, error)
	webhookFn    func(ctx context.Context, body []byte, signature string, now time.Time) error
	verifyFn     func(ctx context.Context, reference string, now time.Time) (*model.Invoice, error)
	refundFn     func(ctx context.Context, orderID uuid.UUID, reason string, now time.Time) (*service.RefundRecord, error)
	summaryFn    func(ctx context.Context, companyID uuid.UUID, actor service.Actor) (*repository.InvoiceStats, error)
}

func (m *mockPaymentServicer) Initialize(ctx context.Context, invoiceID uuid.UUID, actor service.Actor) (*paystack.InitializeResult, error) {
	return m.initializeFn(ctx, invoiceID, actor)
}

func (m *mockPaymentServicer) HandleWebhook(ctx context.Context, body []byte, signature string, now time.Time) error {
	return m.webhookFn(ctx, body, signature, now)
}

func (m *mockPaymentServicer) VerifyAndApply(ctx context.Context, reference string, now time.Time) (*model.Invoice, error) {
	return m.verifyFn(ctx, reference, now)
}

func (m *mockPaymentServicer) RefundOrder(ctx context.Context, orderID uuid.UUID, reason string, now time.Time) (*service.RefundRecord, error) {
	return m.refundFn(ctx, orderID, reason, now)
}

func (m *mockPaymentServicer) SpendingSummary(ctx context.Context, companyID uuid.UUID, actor service.Actor) (*repository.InvoiceStats, error) {
	return m.summaryFn(ctx, companyID, actor)
}

// newPaymentRouter mirrors the production wiring: the webhook is mounted
// outside the authenticated group.
func newPaymentRouter(svc PaymentServicer) http.Handler {
	h := NewPaymentHandler(svc, testLogger())
	r := chi.NewRouter()
	h.RegisterWebhook(r)
	r.Route("/payments", func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		h.RegisterRoutes(r)
	})
	return r
}

func TestWebhookPassesRawBodyAndSignature(t *testing.T) {
	var gotBody, gotSignature string
	svc := &mockPaymentServicer{
		webhookFn: func(ctx context.Context, body []byte, signature string, now time.Time) error {
			gotBody, gotSignature = string(body), signature
			return nil
		},
	}
	router := newPaymentRouter(svc)

	payload := `{"event":"charge.success","data":{"reference":"inv-x","amount":440750}}`
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(payload))
	req.Header.Set("x-paystack-signature", "abc123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	wantStatus(t, rec, http.StatusOK)
	if gotBody != payload {
		t.Errorf("body = %q, want the exact raw payload", gotBody)
	}
	if gotSignature != "abc123" {
		t.Errorf("signature = %q, want abc123", gotSignature)
	}
}

func TestWebhookBadSignature(t *testing.T) {
	svc := &mockPaymentServicer{
		webhookFn: func(ctx context.Context, body []byte, signature string, now time.Time) error {
			return service.ErrBadSignature
		},
	}
	router := newPaymentRouter(svc)

	rec := perform(t, router, http.MethodPost, "/payments/webhook", `{"event":"charge.success"}`, "")
	wantStatus(t, rec, http.StatusUnauthorized)
}

func TestInitializeAlreadyPaid(t *testing.T) {
	svc := &mockPaymentServicer{
		initializeFn: func(ctx context.Context, invoiceID uuid.UUID, actor service.Actor) (*paystack.InitializeResult, error) {
			return nil, service.ErrAlreadyPaid
		},
	}
	router := newPaymentRouter(svc)

	body := fmt.Sprintf(`{"invoice_id":%q}`, uuid.New())
	rec := perform(t, router, http.MethodPost, "/payments/initialize", body,
		bearer(t, uuid.New(), uuid.New(), enum.RoleCompanyAdmin))
	wantStatus(t, rec, http.StatusConflict)
}

func TestInitializeReturnsRedirect(t *testing.T) {
	svc := &mockPaymentServicer{
		initializeFn: func(ctx context.Context, invoiceID uuid.UUID, actor service.Actor) (*paystack.InitializeResult, error) {
			return &paystack.InitializeResult{
				AuthorizationURL: "https://checkout.paystack.com/abc",
				AccessCode:       "abc",
				Reference:        "inv-" + invoiceID.String(),
			}, nil
		},
	}
	router := newPaymentRouter(svc)

	invoiceID := uuid.New()
	body := fmt.Sprintf(`{"invoice_id":%q}`, invoiceID)
	rec := perform(t, router, http.MethodPost, "/payments/initialize", body,
		bearer(t, uuid.New(), uuid.New(), enum.RoleCompanyAdmin))
	wantStatus(t, rec, http.StatusOK)

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["authorization_url"] != "https://checkout.paystack.com/abc" {
		t.Errorf("authorization_url = %q", resp["authorization_url"])
	}
	if resp["reference"] != "inv-"+invoiceID.String() {
		t.Errorf("reference = %q", resp["reference"])
	}
}

func TestRefundAdminOnly(t *testing.T) {
	var refundCalls int
	svc := &mockPaymentServicer{
		refundFn: func(ctx context.Context, orderID uuid.UUID, reason string, now time.Time) (*service.RefundRecord, error) {
			refundCalls++
			return &service.RefundRecord{
				OrderID:     orderID,
				OrderNumber: "NB-00000042-007",
				Amount:      150000,
				Reason:      reason,
				ProviderRef: "42",
				RefundedAt:  now,
			}, nil
		},
	}
	router := newPaymentRouter(svc)
	body := fmt.Sprintf(`{"order_id":%q,"reason":"food quality complaint"}`, uuid.New())

	rec := perform(t, router, http.MethodPost, "/payments/refund", body,
		bearer(t, uuid.New(), uuid.New(), enum.RoleCompanyAdmin))
	wantStatus(t, rec, http.StatusForbidden)
	if refundCalls != 0 {
		t.Fatalf("refund called %d times through the role gate", refundCalls)
	}

	rec = perform(t, router, http.MethodPost, "/payments/refund", body,
		bearer(t, uuid.New(), uuid.New(), enum.RoleAdmin))
	wantStatus(t, rec, http.StatusOK)
	if refundCalls != 1 {
		t.Fatalf("refund calls = %d, want 1", refundCalls)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["amount"] != "1500.00" {
		t.Errorf("amount = %v, want 1500.00", resp["amount"])
	}
}

func TestRefundRequiresReason(t *testing.T) {
	svc := &mockPaymentServicer{
		refundFn: func(ctx context.Context, orderID uuid.UUID, reason string, now time.Time) (*service.RefundRecord, error) {
			t.Fatal("service should not be reached")
			return nil, nil
		},
	}
	router := newPaymentRouter(svc)

	body := fmt.Sprintf(`{"order_id":%q}`, uuid.New())
	rec := perform(t, router, http.MethodPost, "/payments/refund", body,
		bearer(t, uuid.New(), uuid.New(), enum.RoleAdmin))
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestVerifyAppliesPayment(t *testing.T) {
	invoiceID := uuid.New()
	paidAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := &mockPaymentServicer{
		verifyFn: func(ctx context.Context, reference string, now time.Time) (*model.Invoice, error) {
			if reference != "inv-"+invoiceID.String() {
				t.Errorf("reference = %q", reference)
			}
			return &model.Invoice{
				ID:            invoiceID,
				InvoiceNumber: "INV-ACM-202502-0001",
				Subtotal:      410000,
				Tax:           30750,
				Total:         440750,
				Status:        enum.InvoiceStatusPaid,
				PaidAt:        &paidAt,
			}, nil
		},
	}
	router := newPaymentRouter(svc)

	rec := perform(t, router, http.MethodGet, "/payments/verify/inv-"+invoiceID.String(), "",
		bearer(t, uuid.New(), uuid.New(), enum.RoleCompanyAdmin))
	wantStatus(t, rec, http.StatusOK)

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != enum.InvoiceStatusPaid {
		t.Errorf("status = %v, want PAID", resp["status"])
	}
	if resp["total"] != "4407.50" {
		t.Errorf("total = %v, want 4407.50", resp["total"])
	}
}

func TestSpendingSummary(t *testing.T) {
	companyID := uuid.New()
	svc := &mockPaymentServicer{
		summaryFn: func(ctx context.Context, gotCompany uuid.UUID, actor service.Actor) (*repository.InvoiceStats, error) {
			if gotCompany != companyID {
				t.Errorf("company = %s, want caller's %s", gotCompany, companyID)
			}
			return &repository.InvoiceStats{
				TotalInvoiced:    440750,
				TotalPaid:        440750,
				TotalOutstanding: 0,
				InvoiceCount:     1,
				PaidCount:        1,
			}, nil
		},
	}
	router := newPaymentRouter(svc)

	rec := perform(t, router, http.MethodGet, "/payments/spending-summary", "",
		bearer(t, uuid.New(), companyID, enum.RoleCompanyAdmin))
	wantStatus(t, rec, http.StatusOK)

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["total_invoiced"] != "4407.50" {
		t.Errorf("total_invoiced = %v, want 4407.50", resp["total_invoiced"])
	}
	if resp["paid_count"] != float64(1) {
		t.Errorf("paid_count = %v, want 1", resp["paid_count"])
	}
}
