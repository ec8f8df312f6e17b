package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nourishbox/api/internal/apperr"
	"github.com/nourishbox/api/internal/clock"
	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/model"
)

// GuardStore defines the DB methods needed by the admission guard.
type GuardStore interface {
	CountActiveOrdersForMealDate(ctx context.Context, mealID uuid.UUID, date time.Time) (int, error)
}

// Guard runs the admission checks that gate order creation. It is pure
// validation: the caller performs the creation on success.
type Guard struct {
	store        GuardStore
	resolver     *clock.Resolver
	cutoffHour   int
	cutoffMinute int
}

// NewGuard creates a Guard with the configured daily cutoff in
// business-local time.
func NewGuard(store GuardStore, resolver *clock.Resolver, cutoffHour, cutoffMinute int) *Guard {
	return &Guard{
		store:        store,
		resolver:     resolver,
		cutoffHour:   cutoffHour,
		cutoffMinute: cutoffMinute,
	}
}

// AdmitOrder evaluates the admission checks in order, short-circuiting on
// the first failure. deliveryDate must be a calendar date (midnight UTC).
//
// The capacity check is check-then-act: two concurrent creations can both
// pass at the same instant. The cap is soft; bounded overbooking is
// accepted instead of serializing all order creation per meal/date.
func (g *Guard) AdmitOrder(ctx context.Context, staff *model.Staff, meal *model.Meal, deliveryDate, now time.Time) error {
	if !staff.IsOnboarded {
		return apperr.Validation(enum.DenyOnboardingRequired, "complete your health profile first")
	}

	if !meal.IsAvailable {
		return apperr.Validation(enum.DenyMealUnavailable, "this meal is currently unavailable")
	}

	if deliveryDate.Before(g.resolver.Tomorrow(now)) {
		return apperr.Validation(enum.DenyDateTooSoon, "delivery date must be tomorrow or later")
	}

	weekday := clock.Weekday(deliveryDate)
	dayOK := false
	for _, d := range meal.AvailableDays {
		if d == weekday {
			dayOK = true
			break
		}
	}
	if !dayOK {
		return apperr.Validation(enum.DenyDayUnavailable, "this meal is not available on the selected day")
	}

	if meal.MaxDailyCapacity != nil {
		count, err := g.store.CountActiveOrdersForMealDate(ctx, meal.ID, deliveryDate)
		if err != nil {
			return err
		}
		if count >= int(*meal.MaxDailyCapacity) {
			return apperr.Validation(enum.DenyCapacityReached, "this meal has reached its capacity for the selected date")
		}
	}

	// Cutoff is about "can anything be ordered right now today", not about
	// the requested delivery date.
	local := g.resolver.Local(now)
	if local.Hour() > g.cutoffHour ||
		(local.Hour() == g.cutoffHour && local.Minute() >= g.cutoffMinute) {
		return apperr.Validation(enum.DenyCutoffPassed, "order cutoff time has passed for today")
	}

	return nil
}
