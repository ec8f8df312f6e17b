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

	"github.com/nourishbox/api/internal/model"
)

const staffColumns = `id, email, password_hash, name, phone, staff_code, company_id, role, is_onboarded, is_active, created_at`

func scanStaff(row pgx.Row) (*model.Staff, error) {
	var s model.Staff
	err := row.Scan(&s.ID, &s.Email, &s.PasswordHash, &s.Name, &s.Phone,
		&s.StaffCode, &s.CompanyID, &s.Role, &s.IsOnboarded, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan staff: %w", err)
	}
	return &s, nil
}

// CreateStaff inserts a staff member and returns the generated id.
func (r *Postgres) CreateStaff(ctx context.Context, s *model.Staff) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO staff (email, password_hash, name, phone, staff_code, company_id, role, is_onboarded)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		s.Email, s.PasswordHash, s.Name, s.Phone, s.StaffCode, s.CompanyID, s.Role, s.IsOnboarded,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrEmailExists, s.Email)
		}
		return uuid.Nil, fmt.Errorf("create staff: %w", err)
	}
	return id, nil
}

// GetStaff returns a staff member by id.
func (r *Postgres) GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE id = $1`, id)
	return scanStaff(row)
}

// GetStaffByEmail returns a staff member by email.
func (r *Postgres) GetStaffByEmail(ctx context.Context, email string) (*model.Staff, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE email = $1`, email)
	return scanStaff(row)
}

// SetStaffOnboarded flips the onboarding flag after a completed health
// profile. The recommendation cache invalidation is the caller's concern.
func (r *Postgres) SetStaffOnboarded(ctx context.Context, id uuid.UUID, onboarded bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE staff SET is_onboarded = $2 WHERE id = $1`, id, onboarded)
	if err != nil {
		return fmt.Errorf("set staff onboarded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStaffWithoutOrderForDate returns active, onboarded staff of active
// companies who have no non-cancelled order for the given delivery date.
// Used by the pre-cutoff reminder sweep.
func (r *Postgres) ListStaffWithoutOrderForDate(ctx context.Context, date time.Time) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+prefixed("s", staffColumns)+`
		 FROM staff s
		 JOIN companies c ON c.id = s.company_id
		 WHERE s.is_active AND s.is_onboarded AND c.is_active
		   AND NOT EXISTS (
		       SELECT 1 FROM orders o
		       WHERE o.staff_id = s.id
		         AND o.delivery_date = $1
		         AND o.status <> 'CANCELLED'
		   )`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("select staff without order: %w", err)
	}
	defer rows.Close()

	var res []model.Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}
	return res, rows.Err()
}

// GetCompany returns a company by id.
func (r *Postgres) GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, phone, address, company_code, payment_model, billing_day, is_active, created_at
		 FROM companies WHERE id = $1`, id)

	var c model.Company
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address,
		&c.CompanyCode, &c.PaymentModel, &c.BillingDay, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

// CreateCompany inserts a company and returns the generated id.
func (r *Postgres) CreateCompany(ctx context.Context, c *model.Company) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO companies (name, email, phone, address, company_code, payment_model, billing_day)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		c.Name, c.Email, c.Phone, c.Address, c.CompanyCode, c.PaymentModel, c.BillingDay,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create company: %w", err)
	}
	return id, nil
}

// ListActiveCompanies returns every active company.
func (r *Postgres) ListActiveCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, phone, address, company_code, payment_model, billing_day, is_active, created_at
		 FROM companies WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select companies: %w", err)
	}
	defer rows.Close()

	var res []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address,
			&c.CompanyCode, &c.PaymentModel, &c.BillingDay, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
