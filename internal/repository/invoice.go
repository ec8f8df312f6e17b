package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nourishbox/api/internal/model"
)

const invoiceColumns = `id, invoice_number, company_id, billing_month, billing_year, subtotal, tax, total, status, due_date, paid_at, provider_reference, created_at`

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	var inv model.Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.CompanyID,
		&inv.BillingMonth, &inv.BillingYear, &inv.Subtotal, &inv.Tax, &inv.Total,
		&inv.Status, &inv.DueDate, &inv.PaidAt, &inv.ProviderReference, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	return &inv, nil
}

// ListInvoiceableOrders returns a company's delivered, unpaid, unclaimed
// orders with delivery dates inside [start, end).
func (r *Postgres) ListInvoiceableOrders(ctx context.Context, companyID uuid.UUID, start, end time.Time) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE company_id = $1
		   AND delivery_date >= $2 AND delivery_date < $3
		   AND status = 'DELIVERED'
		   AND is_paid = FALSE
		   AND invoice_id IS NULL
		 ORDER BY delivery_date`,
		companyID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("select invoiceable orders: %w", err)
	}
	return collectOrders(rows)
}

// CreateInvoiceWithClaims inserts the invoice and claims every order in one
// transaction. Each claim is conditional on invoice_id still being NULL; a
// lost race aborts the whole transaction with ErrOrderAlreadyClaimed so no
// order is ever claimed twice.
func (r *Postgres) CreateInvoiceWithClaims(ctx context.Context, inv *model.Invoice, orderIDs []uuid.UUID) (uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO invoices (invoice_number, company_id, billing_month, billing_year, subtotal, tax, total, status, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		inv.InvoiceNumber, inv.CompanyID, inv.BillingMonth, inv.BillingYear,
		inv.Subtotal, inv.Tax, inv.Total, inv.Status, inv.DueDate,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create invoice: %w", err)
	}

	for _, orderID := range orderIDs {
		tag, err := tx.Exec(ctx,
			`UPDATE orders SET invoice_id = $1
			 WHERE id = $2 AND invoice_id IS NULL AND is_paid = FALSE`,
			id, orderID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("claim order: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrOrderAlreadyClaimed, orderID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// GetInvoice returns an invoice by id.
func (r *Postgres) GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

// ListInvoicesByCompany returns a company's invoices, newest first.
func (r *Postgres) ListInvoicesByCompany(ctx context.Context, companyID uuid.UUID) ([]model.Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE company_id = $1 ORDER BY created_at DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var res []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *inv)
	}
	return res, rows.Err()
}

// ListInvoiceOrders returns the orders claimed by an invoice.
func (r *Postgres) ListInvoiceOrders(ctx context.Context, invoiceID uuid.UUID) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE invoice_id = $1 ORDER BY delivery_date`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("select invoice orders: %w", err)
	}
	return collectOrders(rows)
}

// MarkInvoicePaid flips the invoice to PAID and cascades is_paid to its
// orders in one transaction. Returns applied=false without touching
// anything when the invoice is already PAID, which makes webhook replays
// harmless.
func (r *Postgres) MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID, providerRef string, at time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE invoices SET status = 'PAID', paid_at = $2, provider_reference = $3
		 WHERE id = $1 AND status <> 'PAID'`,
		invoiceID, at, providerRef)
	if err != nil {
		return false, fmt.Errorf("mark invoice paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET is_paid = TRUE WHERE invoice_id = $1`, invoiceID); err != nil {
		return false, fmt.Errorf("mark orders paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	return true, nil
}

// MarkOverdueInvoices moves PENDING invoices past their due date to OVERDUE
// and returns them.
func (r *Postgres) MarkOverdueInvoices(ctx context.Context, now time.Time) ([]model.Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE invoices SET status = 'OVERDUE'
		 WHERE status = 'PENDING' AND due_date < $1
		 RETURNING `+invoiceColumns,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("mark overdue invoices: %w", err)
	}
	defer rows.Close()

	var res []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *inv)
	}
	return res, rows.Err()
}

// InvoiceStats is a company's invoice spending roll-up.
type InvoiceStats struct {
	TotalInvoiced    int64
	TotalPaid        int64
	TotalOutstanding int64
	InvoiceCount     int
	PaidCount        int
	OverdueCount     int
}

// GetInvoiceStats aggregates one company's invoice totals and counts.
func (r *Postgres) GetInvoiceStats(ctx context.Context, companyID uuid.UUID) (*InvoiceStats, error) {
	var s InvoiceStats
	err := r.pool.QueryRow(ctx,
		`SELECT
		     COALESCE(SUM(total), 0),
		     COALESCE(SUM(total) FILTER (WHERE status = 'PAID'), 0),
		     COALESCE(SUM(total) FILTER (WHERE status <> 'PAID'), 0),
		     COUNT(*),
		     COUNT(*) FILTER (WHERE status = 'PAID'),
		     COUNT(*) FILTER (WHERE status = 'OVERDUE')
		 FROM invoices WHERE company_id = $1`,
		companyID,
	).Scan(&s.TotalInvoiced, &s.TotalPaid, &s.TotalOutstanding,
		&s.InvoiceCount, &s.PaidCount, &s.OverdueCount)
	if err != nil {
		return nil, fmt.Errorf("invoice stats: %w", err)
	}
	return &s, nil
}
