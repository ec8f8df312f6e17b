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

const mealColumns = `id, name, description, category, cuisine, calories, protein, carbs, fats, fiber, sugar, sodium, ingredients, image_url, base_price, is_available, available_days, max_daily_capacity, created_at, updated_at`

func scanMeal(row pgx.Row) (*model.Meal, error) {
	var m model.Meal
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Category, &m.Cuisine,
		&m.Calories, &m.Protein, &m.Carbs, &m.Fats, &m.Fiber, &m.Sugar, &m.Sodium,
		&m.Ingredients, &m.ImageURL, &m.BasePrice, &m.IsAvailable,
		&m.AvailableDays, &m.MaxDailyCapacity, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan meal: %w", err)
	}
	return &m, nil
}

// CreateMeal inserts a meal and returns the generated id.
func (r *Postgres) CreateMeal(ctx context.Context, m *model.Meal) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO meals (name, description, category, cuisine, calories, protein, carbs, fats, fiber, sugar, sodium, ingredients, image_url, base_price, is_available, available_days, max_daily_capacity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING id`,
		m.Name, m.Description, m.Category, m.Cuisine, m.Calories, m.Protein,
		m.Carbs, m.Fats, m.Fiber, m.Sugar, m.Sodium, m.Ingredients, m.ImageURL,
		m.BasePrice, m.IsAvailable, m.AvailableDays, m.MaxDailyCapacity,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create meal: %w", err)
	}
	return id, nil
}

// UpdateMeal replaces the mutable fields of a meal.
func (r *Postgres) UpdateMeal(ctx context.Context, m *model.Meal) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE meals SET name = $2, description = $3, category = $4, cuisine = $5,
		        calories = $6, protein = $7, carbs = $8, fats = $9, fiber = $10,
		        sugar = $11, sodium = $12, ingredients = $13, image_url = $14,
		        base_price = $15, is_available = $16, available_days = $17,
		        max_daily_capacity = $18, updated_at = now()
		 WHERE id = $1`,
		m.ID, m.Name, m.Description, m.Category, m.Cuisine, m.Calories,
		m.Protein, m.Carbs, m.Fats, m.Fiber, m.Sugar, m.Sodium, m.Ingredients,
		m.ImageURL, m.BasePrice, m.IsAvailable, m.AvailableDays, m.MaxDailyCapacity)
	if err != nil {
		return fmt.Errorf("update meal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DisableMeal soft-disables a meal. Meals are never deleted because orders
// reference them.
func (r *Postgres) DisableMeal(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE meals SET is_available = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("disable meal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMeal returns a meal by id.
func (r *Postgres) GetMeal(ctx context.Context, id uuid.UUID) (*model.Meal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+mealColumns+` FROM meals WHERE id = $1`, id)
	return scanMeal(row)
}

// ListMeals returns meals, optionally only the available ones.
func (r *Postgres) ListMeals(ctx context.Context, availableOnly bool) ([]model.Meal, error) {
	q := `SELECT ` + mealColumns + ` FROM meals`
	if availableOnly {
		q += ` WHERE is_available`
	}
	q += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select meals: %w", err)
	}
	defer rows.Close()

	var res []model.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *m)
	}
	return res, rows.Err()
}

// CountActiveOrdersForMealDate counts non-cancelled orders for one meal on
// one delivery date. Capacity admission is check-then-act on this count;
// bounded overbooking under concurrent creation is accepted.
func (r *Postgres) CountActiveOrdersForMealDate(ctx context.Context, mealID uuid.UUID, date time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders
		 WHERE meal_id = $1 AND delivery_date = $2 AND status <> 'CANCELLED'`,
		mealID, date,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders for capacity: %w", err)
	}
	return n, nil
}
