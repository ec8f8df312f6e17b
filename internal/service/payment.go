package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/apperr"
	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/notify"
	"github.com/nourishbox/api/internal/paystack"
	"github.com/nourishbox/api/internal/repository"
)

// Errors returned by the payment service.
var (
	ErrBadSignature  = apperr.New(apperr.KindSignature, "webhook signature verification failed")
	ErrAlreadyPaid   = apperr.New(apperr.KindAlreadyProcessed, "invoice is already paid")
	ErrRefundUnpaid  = apperr.New(apperr.KindValidation, "cannot refund an order that has not been paid")
	ErrNoProviderRef = apperr.New(apperr.KindValidation, "invoice has no provider transaction to refund against")
)

// Provider is the payment gateway surface the service depends on.
// Satisfied by *paystack.Client.
type Provider interface {
	Initialize(ctx context.Context, email string, amount int64, reference, callbackURL string, metadata map[string]any) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error)
	Refund(ctx context.Context, transactionRef string, amount int64) (*paystack.RefundResult, error)
	VerifySignature(body []byte, signature string) bool
}

// PaymentStore defines the DB methods needed by the payment service.
// Satisfied by *repository.Postgres.
type PaymentStore interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error)
	MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID, providerRef string, at time.Time) (bool, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ForceCancelOrder(ctx context.Context, orderID uuid.UUID, reason string, at time.Time) error
	GetInvoiceStats(ctx context.Context, companyID uuid.UUID) (*repository.InvoiceStats, error)
}

// PaymentService settles invoices through the payment provider and keeps
// invoice state consistent with what the provider reports.
type PaymentService struct {
	store        PaymentStore
	provider     Provider
	notifier     notify.Notifier
	logger       *zap.SugaredLogger
	callbackURL  string
	strictAmount bool
}

func NewPaymentService(store PaymentStore, provider Provider, notifier notify.Notifier, logger *zap.SugaredLogger, callbackURL string, strictAmount bool) *PaymentService {
	return &PaymentService{
		store:        store,
		provider:     provider,
		notifier:     notifier,
		logger:       logger,
		callbackURL:  callbackURL,
		strictAmount: strictAmount,
	}
}

// Initialize starts a checkout for an invoice and returns the provider's
// authorization URL. The payment reference is the invoice id, so webhook
// and verify flows resolve back to the invoice without extra state.
func (s *PaymentService) Initialize(ctx context.Context, invoiceID uuid.UUID, actor Actor) (*paystack.InitializeResult, error) {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	if actor.Role != enum.RoleAdmin && actor.CompanyID != inv.CompanyID {
		return nil, apperr.New(apperr.KindPermission, "you do not have permission to pay this invoice")
	}
	if inv.Status == enum.InvoiceStatusPaid {
		return nil, ErrAlreadyPaid
	}

	company, err := s.store.GetCompany(ctx, inv.CompanyID)
	if err != nil {
		return nil, err
	}

	reference := paymentReference(inv.ID)
	res, err := s.provider.Initialize(ctx, company.Email, inv.Total, reference, s.callbackURL, map[string]any{
		"invoice_id":     inv.ID.String(),
		"invoice_number": inv.InvoiceNumber,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("payment initialized",
		"invoice_number", inv.InvoiceNumber, "reference", reference)
	return res, nil
}

// paymentReference is the provider-side reference for an invoice.
func paymentReference(invoiceID uuid.UUID) string {
	return "inv-" + invoiceID.String()
}

// invoiceFromReference reverses paymentReference.
func invoiceFromReference(reference string) (uuid.UUID, error) {
	raw := reference
	if len(raw) > 4 && raw[:4] == "inv-" {
		raw = raw[4:]
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Newf(apperr.KindValidation, "unrecognized payment reference %q", reference)
	}
	return id, nil
}

// HandleWebhook processes a raw provider webhook. The signature is checked
// before the body is even parsed; only charge.success mutates state, and
// replays settle to the same final state without side effects.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string, now time.Time) error {
	if !s.provider.VerifySignature(body, signature) {
		return ErrBadSignature
	}

	var event paystack.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed webhook body", err)
	}

	if event.Event != "charge.success" {
		s.logger.Infow("webhook event ignored", "event", event.Event)
		return nil
	}

	invoiceID, err := invoiceFromReference(event.Data.Reference)
	if err != nil {
		return err
	}
	_, err = s.ApplyPayment(ctx, invoiceID, event.Data.Reference, event.Data.Amount, now)
	return err
}

// VerifyAndApply confirms a payment via the provider's verify endpoint,
// used by the browser callback as a fallback to the webhook.
func (s *PaymentService) VerifyAndApply(ctx context.Context, reference string, now time.Time) (*model.Invoice, error) {
	res, err := s.provider.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	if res.Status != "success" {
		return nil, apperr.Newf(apperr.KindProvider, "payment not successful: %s", res.Status)
	}
	invoiceID, err := invoiceFromReference(reference)
	if err != nil {
		return nil, err
	}
	return s.ApplyPayment(ctx, invoiceID, reference, res.Amount, now)
}

// ApplyPayment reconciles one confirmed payment onto its invoice. The flip
// to PAID happens at most once; a replay returns the already-paid invoice
// without re-notifying. Order is deliberate: existence first, then replay
// detection, then amount reconciliation.
func (s *PaymentService) ApplyPayment(ctx context.Context, invoiceID uuid.UUID, reference string, amount int64, now time.Time) (*model.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	if inv.Status == enum.InvoiceStatusPaid {
		// Replay: settled state, no event, no reconciliation.
		s.logger.Infow("duplicate payment confirmation ignored",
			"invoice_number", inv.InvoiceNumber, "reference", reference)
		return inv, nil
	}

	if amount != inv.Total {
		if s.strictAmount {
			return nil, apperr.Newf(apperr.KindReconciliation,
				"paid amount %d does not match invoice total %d", amount, inv.Total)
		}
		s.logger.Warnw("paid amount differs from invoice total",
			"invoice_number", inv.InvoiceNumber, "paid", amount, "total", inv.Total)
	}

	applied, err := s.store.MarkInvoicePaid(ctx, invoiceID, reference, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent confirmation flipped the invoice first. Same
		// settled state, no event.
		s.logger.Infow("duplicate payment confirmation ignored",
			"invoice_number", inv.InvoiceNumber, "reference", reference)
		return inv, nil
	}

	inv.Status = enum.InvoiceStatusPaid
	inv.PaidAt = &now
	inv.ProviderReference = reference

	s.notifier.Notify(enum.EventPaymentConfirmed, inv.CompanyID, map[string]any{
		"invoice_id":     inv.ID,
		"invoice_number": inv.InvoiceNumber,
		"amount":         inv.Total,
	})
	s.logger.Infow("payment applied",
		"invoice_number", inv.InvoiceNumber, "reference", reference)
	return inv, nil
}

// RefundRecord is the outcome of a single-order refund.
type RefundRecord struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Amount      int64     `json:"amount"`
	Reason      string    `json:"reason"`
	ProviderRef string    `json:"provider_ref"`
	RefundedAt  time.Time `json:"refunded_at"`
}

// RefundOrder refunds one already-paid order against the provider
// transaction that settled its invoice, then force-cancels the order. The
// invoice totals are left untouched: they record what was billed, and the
// refund record is the adjustment.
func (s *PaymentService) RefundOrder(ctx context.Context, orderID uuid.UUID, reason string, now time.Time) (*RefundRecord, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !order.IsPaid || order.InvoiceID == nil {
		return nil, ErrRefundUnpaid
	}

	inv, err := s.store.GetInvoice(ctx, *order.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.ProviderReference == "" {
		return nil, ErrNoProviderRef
	}

	res, err := s.provider.Refund(ctx, inv.ProviderReference, order.Price)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProvider, "provider refund failed", err)
	}

	if err := s.store.ForceCancelOrder(ctx, orderID, reason, now); err != nil {
		// The money moved but the order record did not. Loud log; the
		// order stays visible for manual follow-up.
		s.logger.Errorw("refund succeeded but order cancellation failed",
			"order_number", order.OrderNumber, "error", err)
		return nil, err
	}

	s.logger.Infow("order refunded",
		"order_number", order.OrderNumber, "amount", order.Price, "reason", reason)
	return &RefundRecord{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Amount:      order.Price,
		Reason:      reason,
		ProviderRef: fmt.Sprintf("%d", res.RefundID),
		RefundedAt:  now,
	}, nil
}

// SpendingSummary reports a company's invoice totals.
func (s *PaymentService) SpendingSummary(ctx context.Context, companyID uuid.UUID, actor Actor) (*repository.InvoiceStats, error) {
	if actor.Role != enum.RoleAdmin && actor.CompanyID != companyID {
		return nil, apperr.New(apperr.KindPermission, "you do not have permission to access this summary")
	}
	return s.store.GetInvoiceStats(ctx, companyID)
}
