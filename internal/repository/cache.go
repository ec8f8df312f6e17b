package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nourishbox/api/internal/model"
)

// UpsertRecommendationCache writes a staff member's ranked meals, replacing
// any previous row. One live row per staff id.
func (r *Postgres) UpsertRecommendationCache(ctx context.Context, c *model.RecommendationCache) error {
	meals, err := json.Marshal(c.Meals)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO recommendation_cache (staff_id, meals, generated_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (staff_id) DO UPDATE
		 SET meals = EXCLUDED.meals,
		     generated_at = EXCLUDED.generated_at,
		     expires_at = EXCLUDED.expires_at`,
		c.StaffID, meals, c.GeneratedAt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert recommendation cache: %w", err)
	}
	return nil
}

// GetRecommendationCache returns a staff member's cached recommendations.
// Expired rows are treated as misses; both miss flavors are ErrNotFound.
func (r *Postgres) GetRecommendationCache(ctx context.Context, staffID uuid.UUID, now time.Time) (*model.RecommendationCache, error) {
	var c model.RecommendationCache
	var meals []byte
	err := r.pool.QueryRow(ctx,
		`SELECT staff_id, meals, generated_at, expires_at
		 FROM recommendation_cache WHERE staff_id = $1 AND expires_at > $2`,
		staffID, now,
	).Scan(&c.StaffID, &meals, &c.GeneratedAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get recommendation cache: %w", err)
	}

	if err := json.Unmarshal(meals, &c.Meals); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations: %w", err)
	}
	return &c, nil
}

// DeleteRecommendationCache drops a staff member's cache row. Called when
// the health profile changes.
func (r *Postgres) DeleteRecommendationCache(ctx context.Context, staffID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM recommendation_cache WHERE staff_id = $1`, staffID); err != nil {
		return fmt.Errorf("delete recommendation cache: %w", err)
	}
	return nil
}

// DeleteExpiredCache evicts cache rows past their TTL and returns how many
// were removed.
func (r *Postgres) DeleteExpiredCache(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM recommendation_cache WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
