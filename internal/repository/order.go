package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/model"
)

const orderColumns = `id, order_number, staff_id, company_id, meal_id, quantity, price, delivery_date, delivery_address, notes, status, confirmed_at, preparing_at, out_for_delivery_at, delivered_at, cancelled_at, rider_id, rider_name, rider_phone, is_paid, invoice_id, created_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.StaffID, &o.CompanyID, &o.MealID,
		&o.Quantity, &o.Price, &o.DeliveryDate, &o.DeliveryAddress, &o.Notes,
		&o.Status, &o.ConfirmedAt, &o.PreparingAt, &o.OutForDeliveryAt,
		&o.DeliveredAt, &o.CancelledAt, &o.RiderID, &o.RiderName, &o.RiderPhone,
		&o.IsPaid, &o.InvoiceID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()
	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *o)
	}
	return res, rows.Err()
}

// CreateOrder inserts a confirmed order and returns the generated id.
// A colliding order number maps to ErrOrderNumberConflict so the service
// layer can regenerate and retry.
func (r *Postgres) CreateOrder(ctx context.Context, o *model.Order) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO orders (order_number, staff_id, company_id, meal_id, quantity, price, delivery_date, delivery_address, notes, status, confirmed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		o.OrderNumber, o.StaffID, o.CompanyID, o.MealID, o.Quantity, o.Price,
		o.DeliveryDate, o.DeliveryAddress, o.Notes, o.Status, o.ConfirmedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrOrderNumberConflict, o.OrderNumber)
		}
		return uuid.Nil, fmt.Errorf("create order: %w", err)
	}
	return id, nil
}

// GetOrder returns an order by id.
func (r *Postgres) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// ListOrdersByStaff returns a staff member's orders, newest first.
// status filters when non-empty.
func (r *Postgres) ListOrdersByStaff(ctx context.Context, staffID uuid.UUID, status string, limit, offset int) ([]model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE staff_id = $1`
	args := []any{staffID}
	if status != "" {
		q += ` AND status = $2`
		args = append(args, status)
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select staff orders: %w", err)
	}
	return collectOrders(rows)
}

// ListOrdersForDate returns non-cancelled orders for a delivery date,
// oldest first. Used for the kitchen roll-up.
func (r *Postgres) ListOrdersForDate(ctx context.Context, date time.Time) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE delivery_date = $1 AND status <> 'CANCELLED'
		 ORDER BY created_at`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders for date: %w", err)
	}
	return collectOrders(rows)
}

// ListCompanyOrders returns a company's non-cancelled orders with delivery
// dates inside [start, end).
func (r *Postgres) ListCompanyOrders(ctx context.Context, companyID uuid.UUID, start, end time.Time) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE company_id = $1 AND delivery_date >= $2 AND delivery_date < $3
		   AND status <> 'CANCELLED'
		 ORDER BY delivery_date`,
		companyID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("select company orders: %w", err)
	}
	return collectOrders(rows)
}

// stampColumn maps an order status to the timestamp column its transition
// sets. The whitelist keeps the dynamic column name safe.
var stampColumn = map[string]string{
	enum.OrderStatusPreparing:      "preparing_at",
	enum.OrderStatusOutForDelivery: "out_for_delivery_at",
	enum.OrderStatusDelivered:      "delivered_at",
	enum.OrderStatusCancelled:      "cancelled_at",
}

// TransitionUpdate is a conditional status move: applied only while the
// order is still in From, so concurrent sweeps cannot double-advance.
type TransitionUpdate struct {
	OrderID    uuid.UUID
	From       string
	To         string
	At         time.Time
	RiderID    *uuid.UUID
	RiderName  string
	RiderPhone string
}

// ApplyOrderTransition performs the conditional update and reports whether
// it took effect. Rider fields are written only for OUT_FOR_DELIVERY.
func (r *Postgres) ApplyOrderTransition(ctx context.Context, u TransitionUpdate) (bool, error) {
	col, ok := stampColumn[u.To]
	if !ok {
		return false, fmt.Errorf("no timestamp column for status %s", u.To)
	}

	var tag pgconn.CommandTag
	var err error
	if u.To == enum.OrderStatusOutForDelivery {
		tag, err = r.pool.Exec(ctx,
			`UPDATE orders SET status = $3, `+col+` = $4, rider_id = $5, rider_name = $6, rider_phone = $7
			 WHERE id = $1 AND status = $2`,
			u.OrderID, u.From, u.To, u.At, u.RiderID, u.RiderName, u.RiderPhone)
	} else {
		tag, err = r.pool.Exec(ctx,
			`UPDATE orders SET status = $3, `+col+` = $4
			 WHERE id = $1 AND status = $2`,
			u.OrderID, u.From, u.To, u.At)
	}
	if err != nil {
		return false, fmt.Errorf("apply transition: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListOrdersForSweep returns orders in the given status whose transition
// timestamp is older than stampBefore. deliveryDate restricts to one
// calendar date when non-nil. The predicate is self-extinguishing: once a
// transition runs, the order no longer matches.
func (r *Postgres) ListOrdersForSweep(ctx context.Context, status string, stampBefore time.Time, deliveryDate *time.Time) ([]model.Order, error) {
	var col string
	switch status {
	case enum.OrderStatusConfirmed:
		col = "confirmed_at"
	case enum.OrderStatusPreparing:
		col = "preparing_at"
	case enum.OrderStatusOutForDelivery:
		col = "out_for_delivery_at"
	default:
		return nil, fmt.Errorf("no sweep for status %s", status)
	}

	q := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 AND ` + col + ` < $2`
	args := []any{status, stampBefore}
	if deliveryDate != nil {
		q += ` AND delivery_date = $3`
		args = append(args, *deliveryDate)
	}
	q += ` ORDER BY ` + col

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders for sweep: %w", err)
	}
	return collectOrders(rows)
}

// ForceCancelOrder cancels an order regardless of its current status and
// appends the reason to its notes. Refund path only.
func (r *Postgres) ForceCancelOrder(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET status = 'CANCELLED', cancelled_at = $2,
		     notes = CASE WHEN notes = '' THEN $3 ELSE notes || E'\n\n' || $3 END
		 WHERE id = $1`,
		id, at, "Refund: "+reason)
	if err != nil {
		return fmt.Errorf("force cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
