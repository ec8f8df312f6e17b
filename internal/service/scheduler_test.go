package service

import (
	"context"
	"testing"
	"time"

	"github.com/nourishbox/api/internal/clock"
	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/model"
)

func schedulerFixture(t *testing.T) (*Scheduler, *mockStore, *recordNotifier) {
	t.Helper()
	store := newMockStore()
	resolver := clock.NewResolver(1)
	notifier := &recordNotifier{}
	guard := NewGuard(store, resolver, 16, 0)
	orders := NewOrderService(store, guard, resolver, clock.System{}, notifier, testLogger(),
		30*time.Minute, 15*time.Minute, 30*time.Minute)
	invoices := NewInvoiceService(store, resolver, notifier, testLogger())
	recs := NewRecommendService(store, DefaultRanker{}, testLogger())
	s := NewScheduler(orders, invoices, recs, store, resolver, notifier, testLogger(), 16, 0)
	return s, store, notifier
}

func TestSchedulerReminderAtCutoffMinus30(t *testing.T) {
	s, store, notifier := schedulerFixture(t)
	companyID := store.addCompany(model.Company{Name: "Acme", CompanyCode: "ACM", IsActive: true})
	quiet := store.addStaff(model.Staff{CompanyID: companyID, IsActive: true})
	ordered := store.addStaff(model.Staff{CompanyID: companyID, IsActive: true})
	store.addOrder(model.Order{
		StaffID: ordered, CompanyID: companyID,
		Status: enum.OrderStatusConfirmed, DeliveryDate: date(2025, time.March, 11),
	})
	ctx := context.Background()

	// 15:29 local: not yet.
	s.RunOnce(ctx, at(2025, time.March, 10, 15, 29))
	if got := notifier.count(enum.EventOrderReminder); got != 0 {
		t.Fatalf("reminders before window = %d, want 0", got)
	}

	// 15:30 local: exactly cutoff minus 30 minutes.
	s.RunOnce(ctx, at(2025, time.March, 10, 15, 30))
	if got := notifier.count(enum.EventOrderReminder); got != 1 {
		t.Fatalf("reminders = %d, want 1 (only the staff without an order)", got)
	}

	// Another tick inside the same minute must not re-fire.
	s.RunOnce(ctx, at(2025, time.March, 10, 15, 30))
	if got := notifier.count(enum.EventOrderReminder); got != 1 {
		t.Errorf("reminders after duplicate tick = %d, want 1", got)
	}
	_ = quiet
}

func TestSchedulerMonthEndInvoicing(t *testing.T) {
	s, store, _ := schedulerFixture(t)
	companyID := store.addCompany(model.Company{Name: "Acme", CompanyCode: "ACM", IsActive: true})
	seedDelivered(store, companyID, date(2025, time.February, 10), 150000)
	ctx := context.Background()

	// 01:00 on 1 March bills February.
	s.RunOnce(ctx, at(2025, time.March, 1, 1, 0))
	if len(store.invoices) != 1 {
		t.Fatalf("invoices = %d, want 1", len(store.invoices))
	}
	for _, inv := range store.invoices {
		if inv.BillingMonth != 2 || inv.BillingYear != 2025 {
			t.Errorf("billed %d/%d, want 2/2025", inv.BillingMonth, inv.BillingYear)
		}
	}

	// A duplicate tick in the same minute creates nothing new.
	s.RunOnce(ctx, at(2025, time.March, 1, 1, 0))
	if len(store.invoices) != 1 {
		t.Errorf("invoices after duplicate tick = %d, want 1", len(store.invoices))
	}

	// 01:00 on any other day does nothing.
	s.RunOnce(ctx, at(2025, time.March, 2, 1, 0))
	if len(store.invoices) != 1 {
		t.Errorf("invoices after non-first-day tick = %d, want 1", len(store.invoices))
	}
}

func TestSchedulerOverdueSweepAtNine(t *testing.T) {
	s, store, _ := schedulerFixture(t)
	companyID := store.addCompany(model.Company{Name: "Acme", CompanyCode: "ACM", IsActive: true})
	invID := store.addInvoice(model.Invoice{
		CompanyID: companyID, Status: enum.InvoiceStatusPending,
		DueDate: at(2025, time.March, 1, 12, 0),
	})
	ctx := context.Background()

	s.RunOnce(ctx, at(2025, time.March, 10, 8, 59))
	if store.invoices[invID].Status != enum.InvoiceStatusPending {
		t.Fatal("overdue sweep ran before 09:00")
	}

	s.RunOnce(ctx, at(2025, time.March, 10, 9, 0))
	if store.invoices[invID].Status != enum.InvoiceStatusOverdue {
		t.Errorf("status = %s, want OVERDUE after the 09:00 sweep", store.invoices[invID].Status)
	}
}

func TestSchedulerCacheEvictionAtThree(t *testing.T) {
	s, store, _ := schedulerFixture(t)
	staffID := store.addStaff(model.Staff{IsActive: true})
	store.caches[staffID] = &model.RecommendationCache{
		StaffID:   staffID,
		ExpiresAt: at(2025, time.March, 9, 12, 0),
	}
	ctx := context.Background()

	s.RunOnce(ctx, at(2025, time.March, 10, 3, 0))
	if _, ok := store.caches[staffID]; ok {
		t.Error("expired cache row survived the 03:00 eviction")
	}
}

func TestSchedulerStatusSweepWindow(t *testing.T) {
	s, store, _ := schedulerFixture(t)
	companyID := store.addCompany(model.Company{Name: "Acme", CompanyCode: "ACM", IsActive: true})
	staffID := store.addStaff(model.Staff{CompanyID: companyID, IsActive: true, IsOnboarded: true})
	ctx := context.Background()

	stale := at(2025, time.March, 10, 8, 0)
	orderID := store.addOrder(model.Order{
		StaffID: staffID, CompanyID: companyID,
		Status: enum.OrderStatusConfirmed, DeliveryDate: date(2025, time.March, 10),
		ConfirmedAt: &stale,
	})

	// 21:05 local: outside the working-day window, no sweep.
	s.RunOnce(ctx, at(2025, time.March, 10, 21, 5))
	if store.orders[orderID].Status != enum.OrderStatusConfirmed {
		t.Fatal("sweep ran outside the working window")
	}

	// 10:00 local next tick slot: sweep runs.
	s.RunOnce(ctx, at(2025, time.March, 10, 10, 0))
	if store.orders[orderID].Status != enum.OrderStatusPreparing {
		t.Errorf("status = %s, want PREPARING after in-window sweep", store.orders[orderID].Status)
	}
}
