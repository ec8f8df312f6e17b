package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/apperr"
	"github.com/nourishbox/api/internal/clock"
	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/notify"
	"github.com/nourishbox/api/internal/repository"
)

// taxOn computes 7.5% VAT in kobo, rounded half-up.
func taxOn(subtotal int64) int64 {
	return (subtotal*75 + 500) / 1000
}

// ErrInvoiceNotFound is returned when an invoice id or reference resolves
// to nothing.
var ErrInvoiceNotFound = apperr.New(apperr.KindNotFound, "invoice not found")

// InvoiceStore defines the DB methods needed by the invoice service.
// Satisfied by *repository.Postgres.
type InvoiceStore interface {
	GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error)
	ListActiveCompanies(ctx context.Context) ([]model.Company, error)
	ListInvoiceableOrders(ctx context.Context, companyID uuid.UUID, start, end time.Time) ([]model.Order, error)
	CreateInvoiceWithClaims(ctx context.Context, inv *model.Invoice, orderIDs []uuid.UUID) (uuid.UUID, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	ListInvoicesByCompany(ctx context.Context, companyID uuid.UUID) ([]model.Invoice, error)
	ListInvoiceOrders(ctx context.Context, invoiceID uuid.UUID) ([]model.Order, error)
	MarkOverdueInvoices(ctx context.Context, now time.Time) ([]model.Invoice, error)
}

// InvoiceService aggregates delivered, unpaid orders into monthly invoices.
type InvoiceService struct {
	store    InvoiceStore
	resolver *clock.Resolver
	notifier notify.Notifier
	logger   *zap.SugaredLogger
}

func NewInvoiceService(store InvoiceStore, resolver *clock.Resolver, notifier notify.Notifier, logger *zap.SugaredLogger) *InvoiceService {
	return &InvoiceService{store: store, resolver: resolver, notifier: notifier, logger: logger}
}

// Generate builds the invoice for one company and billing month. Returns
// (nil, nil) when the company has nothing to invoice. Re-running for the
// same month only ever picks up orders the first run missed: claimed
// orders carry an invoice_id and are excluded at the query.
func (s *InvoiceService) Generate(ctx context.Context, companyID uuid.UUID, month, year int, now time.Time) (*model.Invoice, error) {
	company, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "company not found")
		}
		return nil, err
	}

	start, end := clock.MonthBounds(month, year)
	orders, err := s.store.ListInvoiceableOrders(ctx, companyID, start, end)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	var subtotal int64
	orderIDs := make([]uuid.UUID, len(orders))
	for i := range orders {
		subtotal += orders[i].Price
		orderIDs[i] = orders[i].ID
	}
	tax := taxOn(subtotal)

	inv := &model.Invoice{
		InvoiceNumber: generateInvoiceNumber(company.CompanyCode, month, year),
		CompanyID:     companyID,
		BillingMonth:  month,
		BillingYear:   year,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         subtotal + tax,
		Status:        enum.InvoiceStatusPending,
		DueDate:       now.AddDate(0, 0, 14),
	}

	id, err := s.store.CreateInvoiceWithClaims(ctx, inv, orderIDs)
	if err != nil {
		if errors.Is(err, repository.ErrOrderAlreadyClaimed) {
			// A concurrent run claimed one of our orders. The whole insert
			// rolled back; the other run's invoice covers them.
			s.logger.Warnw("invoice generation lost claim race",
				"company_id", companyID, "month", month, "year", year)
			return nil, nil
		}
		return nil, err
	}
	inv.ID = id
	inv.CreatedAt = now

	s.notifier.Notify(enum.EventInvoiceIssued, companyID, map[string]any{
		"invoice_id":     inv.ID,
		"invoice_number": inv.InvoiceNumber,
		"total":          inv.Total,
		"due_date":       inv.DueDate,
	})
	s.logger.Infow("invoice generated",
		"invoice_number", inv.InvoiceNumber,
		"company", company.Name,
		"orders", len(orderIDs),
		"total", inv.Total)
	return inv, nil
}

func generateInvoiceNumber(companyCode string, month, year int) string {
	return fmt.Sprintf("INV-%s-%04d%02d-%04d", companyCode, year, month, rand.Intn(10000))
}

// GenerateAllForPreviousMonth runs month-end billing across every active
// company. One company failing never blocks the rest.
func (s *InvoiceService) GenerateAllForPreviousMonth(ctx context.Context, now time.Time) {
	month, year := s.resolver.PreviousMonth(now)
	companies, err := s.store.ListActiveCompanies(ctx)
	if err != nil {
		s.logger.Errorw("invoice run: listing companies failed", "error", err)
		return
	}
	for i := range companies {
		if _, err := s.Generate(ctx, companies[i].ID, month, year, now); err != nil {
			s.logger.Errorw("invoice run: company failed",
				"company", companies[i].Name, "error", err)
		}
	}
}

// Get returns an invoice with its claimed orders, enforcing that company
// admins only read their own company's invoices.
func (s *InvoiceService) Get(ctx context.Context, invoiceID uuid.UUID, actor Actor) (*model.Invoice, []model.Order, error) {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvoiceNotFound
		}
		return nil, nil, err
	}
	if actor.Role != enum.RoleAdmin && actor.CompanyID != inv.CompanyID {
		return nil, nil, apperr.New(apperr.KindPermission, "you do not have permission to access this invoice")
	}
	orders, err := s.store.ListInvoiceOrders(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	return inv, orders, nil
}

// ListForCompany returns a company's invoices, newest first.
func (s *InvoiceService) ListForCompany(ctx context.Context, companyID uuid.UUID, actor Actor) ([]model.Invoice, error) {
	if actor.Role != enum.RoleAdmin && actor.CompanyID != companyID {
		return nil, apperr.New(apperr.KindPermission, "you do not have permission to access these invoices")
	}
	return s.store.ListInvoicesByCompany(ctx, companyID)
}

// MarkOverdue flips every past-due PENDING invoice to OVERDUE and notifies
// the affected companies. Already-flipped invoices are skipped by the
// query, so repeated runs are no-ops.
func (s *InvoiceService) MarkOverdue(ctx context.Context, now time.Time) int {
	flipped, err := s.store.MarkOverdueInvoices(ctx, now)
	if err != nil {
		s.logger.Errorw("overdue sweep failed", "error", err)
		return 0
	}
	for i := range flipped {
		s.notifier.Notify(enum.EventInvoiceIssued, flipped[i].CompanyID, map[string]any{
			"invoice_id":     flipped[i].ID,
			"invoice_number": flipped[i].InvoiceNumber,
			"status":         enum.InvoiceStatusOverdue,
		})
	}
	if len(flipped) > 0 {
		s.logger.Infow("invoices marked overdue", "count", len(flipped))
	}
	return len(flipped)
}
