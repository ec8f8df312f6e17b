package service

import (
	"context"
	"testing"
	"time"

	"github.com/nourishbox/api/internal/apperr"
	"github.com/nourishbox/api/internal/clock"
	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/model"
)

func allWeek() []int32 { return []int32{0, 1, 2, 3, 4, 5, 6} }

func guardFixture(cutoffHour, cutoffMinute int) (*Guard, *mockStore) {
	store := newMockStore()
	resolver := clock.NewResolver(1)
	return NewGuard(store, resolver, cutoffHour, cutoffMinute), store
}

func wantDeny(t *testing.T, err error, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected denial %s, got admit", reason)
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := apperr.ReasonOf(err); got != reason {
		t.Fatalf("deny reason = %s, want %s", got, reason)
	}
}

func TestAdmitOrderChecksInOrder(t *testing.T) {
	guard, store := guardFixture(16, 0)
	ctx := context.Background()
	// Monday 2025-03-10, 10:00 business-local.
	now := at(2025, time.March, 10, 10, 0)
	tomorrow := date(2025, time.March, 11)

	staff := &model.Staff{IsOnboarded: true, IsActive: true}
	meal := &model.Meal{IsAvailable: true, AvailableDays: allWeek()}

	t.Run("onboarding required", func(t *testing.T) {
		notOnboarded := &model.Staff{IsOnboarded: false}
		wantDeny(t, guard.AdmitOrder(ctx, notOnboarded, meal, tomorrow, now), enum.DenyOnboardingRequired)
	})

	t.Run("meal unavailable", func(t *testing.T) {
		off := &model.Meal{IsAvailable: false, AvailableDays: allWeek()}
		wantDeny(t, guard.AdmitOrder(ctx, staff, off, tomorrow, now), enum.DenyMealUnavailable)
	})

	t.Run("same-day delivery too soon", func(t *testing.T) {
		today := date(2025, time.March, 10)
		wantDeny(t, guard.AdmitOrder(ctx, staff, meal, today, now), enum.DenyDateTooSoon)
	})

	t.Run("day not offered", func(t *testing.T) {
		weekdaysOnly := &model.Meal{IsAvailable: true, AvailableDays: []int32{1, 2, 3, 4, 5}}
		saturday := date(2025, time.March, 15)
		wantDeny(t, guard.AdmitOrder(ctx, staff, weekdaysOnly, saturday, now), enum.DenyDayUnavailable)
	})

	t.Run("admitted", func(t *testing.T) {
		if err := guard.AdmitOrder(ctx, staff, meal, tomorrow, now); err != nil {
			t.Fatalf("expected admit, got %v", err)
		}
	})

	_ = store
}

func TestAdmitOrderCapacity(t *testing.T) {
	guard, store := guardFixture(16, 0)
	ctx := context.Background()
	now := at(2025, time.March, 10, 10, 0)
	tomorrow := date(2025, time.March, 11)

	capacity := int32(2)
	staff := &model.Staff{IsOnboarded: true}
	mealID := store.addMeal(model.Meal{IsAvailable: true, AvailableDays: allWeek(), MaxDailyCapacity: &capacity})
	meal := store.meals[mealID]

	admit := func() error { return guard.AdmitOrder(ctx, staff, meal, tomorrow, now) }

	if err := admit(); err != nil {
		t.Fatalf("order 1: expected admit, got %v", err)
	}
	first := store.addOrder(model.Order{MealID: mealID, DeliveryDate: tomorrow, Status: enum.OrderStatusConfirmed})
	if err := admit(); err != nil {
		t.Fatalf("order 2: expected admit, got %v", err)
	}
	store.addOrder(model.Order{MealID: mealID, DeliveryDate: tomorrow, Status: enum.OrderStatusConfirmed})

	// N+1 is denied.
	wantDeny(t, admit(), enum.DenyCapacityReached)

	// Cancelling one of the N restores a slot.
	store.orders[first].Status = enum.OrderStatusCancelled
	if err := admit(); err != nil {
		t.Fatalf("after cancel: expected admit, got %v", err)
	}
}

func TestAdmitOrderCutoffBoundary(t *testing.T) {
	guard, _ := guardFixture(23, 0)
	ctx := context.Background()
	staff := &model.Staff{IsOnboarded: true}
	meal := &model.Meal{IsAvailable: true, AvailableDays: allWeek()}
	delivery := date(2025, time.March, 14)

	before := at(2025, time.March, 10, 22, 59)
	if err := guard.AdmitOrder(ctx, staff, meal, delivery, before); err != nil {
		t.Fatalf("22:59 local: expected admit, got %v", err)
	}

	after := at(2025, time.March, 10, 23, 1)
	wantDeny(t, guard.AdmitOrder(ctx, staff, meal, delivery, after), enum.DenyCutoffPassed)

	// Exactly at the cutoff is already too late.
	exact := at(2025, time.March, 10, 23, 0)
	wantDeny(t, guard.AdmitOrder(ctx, staff, meal, delivery, exact), enum.DenyCutoffPassed)
}

// The cutoff is evaluated in business-local time, so a UTC instant late in
// the evening can already be past local midnight.
func TestAdmitOrderCutoffMidnightRollover(t *testing.T) {
	guard, _ := guardFixture(16, 0)
	ctx := context.Background()
	staff := &model.Staff{IsOnboarded: true}
	meal := &model.Meal{IsAvailable: true, AvailableDays: allWeek()}

	// 23:30 UTC on the 10th is 00:30 local on the 11th: morning again,
	// before the 16:00 cutoff, and "tomorrow" is now the 12th.
	now := time.Date(2025, time.March, 10, 23, 30, 0, 0, time.UTC)
	if err := guard.AdmitOrder(ctx, staff, meal, date(2025, time.March, 12), now); err != nil {
		t.Fatalf("expected admit after local midnight, got %v", err)
	}
	wantDeny(t, guard.AdmitOrder(ctx, staff, meal, date(2025, time.March, 11), now), enum.DenyDateTooSoon)
}
