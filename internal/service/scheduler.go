package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/clock"
	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/notify"
)

// tickInterval is how often the scheduler wakes up to evaluate its jobs.
// Each job dedupes on its own firing key, so the tick just needs to be
// finer than the tightest job cadence.
const tickInterval = 30 * time.Second

// ReminderStore defines the DB methods the reminder job needs.
// Satisfied by *repository.Postgres.
type ReminderStore interface {
	ListStaffWithoutOrderForDate(ctx context.Context, date time.Time) ([]model.Staff, error)
}

// Scheduler drives every time-based job: the status sweep, the order
// reminder, month-end invoicing, the overdue sweep, and cache eviction.
// All schedule decisions are made in business-local time.
type Scheduler struct {
	orders   *OrderService
	invoices *InvoiceService
	recs     *RecommendService
	store    ReminderStore
	resolver *clock.Resolver
	notifier notify.Notifier
	logger   *zap.SugaredLogger

	cutoffHour   int
	cutoffMinute int

	// lastFired dedupes job executions: job name -> key of the last slot
	// it ran in. Restart loses the map, which at worst re-runs jobs whose
	// effects are idempotent anyway.
	lastFired map[string]string
}

func NewScheduler(orders *OrderService, invoices *InvoiceService, recs *RecommendService, store ReminderStore, resolver *clock.Resolver, notifier notify.Notifier, logger *zap.SugaredLogger, cutoffHour, cutoffMinute int) *Scheduler {
	return &Scheduler{
		orders:       orders,
		invoices:     invoices,
		recs:         recs,
		store:        store,
		resolver:     resolver,
		notifier:     notifier,
		logger:       logger,
		cutoffHour:   cutoffHour,
		cutoffMinute: cutoffMinute,
		lastFired:    make(map[string]string),
	}
}

// Run ticks until ctx is cancelled. One slow job delays the others within
// a tick but never skips them; missed slots are simply not fired late.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Infow("scheduler started", "tick", tickInterval.String())
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

// tick evaluates every job against one instant. Exported-path entry for
// tests via RunOnce.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	local := s.resolver.Local(now)

	// Status sweep: every 5 minutes during the working day.
	if local.Hour() >= 6 && local.Hour() <= 20 {
		slot := fmt.Sprintf("%s-%02d", local.Format("2006-01-02-15"), local.Minute()/5)
		if s.fire("status-sweep", slot) {
			if n := s.orders.SweepStatuses(ctx, now); n > 0 {
				s.logger.Infow("status sweep advanced orders", "count", n)
			}
		}
	}

	// Order reminder: 30 minutes before cutoff, staff without an order
	// for tomorrow get a nudge.
	if atMinute(local, s.cutoffHour, s.cutoffMinute, -30) {
		if s.fire("order-reminder", local.Format("2006-01-02")) {
			s.remind(ctx, now)
		}
	}

	// Month-end invoicing: 01:00 on the 1st, for the month just ended.
	if local.Day() == 1 && atMinute(local, 1, 0, 0) {
		if s.fire("invoice-run", local.Format("2006-01")) {
			s.invoices.GenerateAllForPreviousMonth(ctx, now)
		}
	}

	// Overdue sweep: daily at 09:00.
	if atMinute(local, 9, 0, 0) {
		if s.fire("overdue-sweep", local.Format("2006-01-02")) {
			s.invoices.MarkOverdue(ctx, now)
		}
	}

	// Cache eviction: daily at 03:00.
	if atMinute(local, 3, 0, 0) {
		if s.fire("cache-evict", local.Format("2006-01-02")) {
			s.recs.EvictExpired(ctx, now)
		}
	}
}

// RunOnce evaluates all jobs for a single instant. Test hook.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) {
	s.tick(ctx, now)
}

// fire reports whether job may run for slot, recording the slot when so.
func (s *Scheduler) fire(job, slot string) bool {
	if s.lastFired[job] == slot {
		return false
	}
	s.lastFired[job] = slot
	return true
}

// atMinute reports whether local falls in the minute at hour:minute shifted
// by offsetMin. The scheduler ticks well inside a minute, so a minute-wide
// window never misses.
func atMinute(local time.Time, hour, minute, offsetMin int) bool {
	target := time.Date(local.Year(), time.Month(local.Month()), local.Day(), hour, minute, 0, 0, local.Location()).
		Add(time.Duration(offsetMin) * time.Minute)
	return local.Hour() == target.Hour() && local.Minute() == target.Minute()
}

// remind notifies every staff member who has not ordered for tomorrow.
func (s *Scheduler) remind(ctx context.Context, now time.Time) {
	tomorrow := s.resolver.Tomorrow(now)
	staff, err := s.store.ListStaffWithoutOrderForDate(ctx, tomorrow)
	if err != nil {
		s.logger.Errorw("reminder query failed", "error", err)
		return
	}
	for i := range staff {
		s.notifier.Notify(enum.EventOrderReminder, staff[i].CompanyID, map[string]any{
			"staff_id":      staff[i].ID,
			"staff_name":    staff[i].Name,
			"delivery_date": tomorrow.Format("2006-01-02"),
		})
	}
	if len(staff) > 0 {
		s.logger.Infow("order reminders sent", "count", len(staff))
	}
}
