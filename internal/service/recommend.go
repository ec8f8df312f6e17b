package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/repository"
)

// cacheTTL is how long a computed recommendation stays fresh.
const cacheTTL = 24 * time.Hour

// Ranker scores a staff member's candidate meals, best first.
type Ranker interface {
	Rank(ctx context.Context, staff *model.Staff, meals []model.Meal) []model.RankedMeal
}

// RecommendStore defines the DB methods needed by the recommendation
// service. Satisfied by *repository.Postgres.
type RecommendStore interface {
	GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	ListMeals(ctx context.Context, availableOnly bool) ([]model.Meal, error)
	GetRecommendationCache(ctx context.Context, staffID uuid.UUID, now time.Time) (*model.RecommendationCache, error)
	UpsertRecommendationCache(ctx context.Context, c *model.RecommendationCache) error
	DeleteRecommendationCache(ctx context.Context, staffID uuid.UUID) error
	DeleteExpiredCache(ctx context.Context, now time.Time) (int64, error)
}

// RecommendService serves per-staff meal rankings through a read-through
// cache. Ranking is deterministic for a given staff and menu, so a cache
// miss after eviction recomputes the same answer.
type RecommendService struct {
	store  RecommendStore
	ranker Ranker
	logger *zap.SugaredLogger
}

func NewRecommendService(store RecommendStore, ranker Ranker, logger *zap.SugaredLogger) *RecommendService {
	return &RecommendService{store: store, ranker: ranker, logger: logger}
}

// Get returns the ranked meals for a staff member, computing and caching
// on a miss. A cache write failure only loses the cache, not the answer.
func (s *RecommendService) Get(ctx context.Context, staffID uuid.UUID, now time.Time) ([]model.RankedMeal, error) {
	cached, err := s.store.GetRecommendationCache(ctx, staffID, now)
	if err == nil {
		return cached.Meals, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	staff, err := s.store.GetStaff(ctx, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}
	meals, err := s.store.ListMeals(ctx, true)
	if err != nil {
		return nil, err
	}

	ranked := s.ranker.Rank(ctx, staff, meals)

	if err := s.store.UpsertRecommendationCache(ctx, &model.RecommendationCache{
		StaffID:     staffID,
		Meals:       ranked,
		GeneratedAt: now,
		ExpiresAt:   now.Add(cacheTTL),
	}); err != nil {
		s.logger.Warnw("recommendation cache write failed", "staff_id", staffID, "error", err)
	}
	return ranked, nil
}

// Invalidate drops a staff member's cached recommendation. Called when
// their profile changes so the next read recomputes.
func (s *RecommendService) Invalidate(ctx context.Context, staffID uuid.UUID) error {
	return s.store.DeleteRecommendationCache(ctx, staffID)
}

// EvictExpired removes expired cache rows. Expired entries are already
// invisible to readers; this just reclaims the space.
func (s *RecommendService) EvictExpired(ctx context.Context, now time.Time) int64 {
	n, err := s.store.DeleteExpiredCache(ctx, now)
	if err != nil {
		s.logger.Errorw("cache eviction failed", "error", err)
		return 0
	}
	if n > 0 {
		s.logger.Infow("expired recommendation cache evicted", "rows", n)
	}
	return n
}

// DefaultRanker scores meals by nutritional balance. Deterministic: equal
// inputs always produce the same ordering.
type DefaultRanker struct{}

// Rank scores each meal and returns them best first. Ties break on meal id
// so the ordering is stable.
func (DefaultRanker) Rank(_ context.Context, _ *model.Staff, meals []model.Meal) []model.RankedMeal {
	ranked := make([]model.RankedMeal, 0, len(meals))
	for i := range meals {
		m := &meals[i]
		score := float64(m.Protein)*2 + float64(m.Fiber)*1.5 - float64(m.Sugar)*0.5 - float64(m.Sodium)*0.01
		if m.Calories >= 400 && m.Calories <= 700 {
			score += 10
		}
		ranked = append(ranked, model.RankedMeal{MealID: m.ID, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].MealID.String() < ranked[j].MealID.String()
	})
	return ranked
}
