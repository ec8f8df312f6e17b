package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/repository"
)

// mockStore is an in-memory stand-in for *repository.Postgres. It mirrors
// the conditional-update semantics of the real queries so the services'
// race handling is exercised, not bypassed.
type mockStore struct {
	staff     map[uuid.UUID]*model.Staff
	companies map[uuid.UUID]*model.Company
	meals     map[uuid.UUID]*model.Meal
	orders    map[uuid.UUID]*model.Order
	invoices  map[uuid.UUID]*model.Invoice
	caches    map[uuid.UUID]*model.RecommendationCache

	orderNumbers map[string]bool
	// conflictsLeft forces the next N CreateOrder calls to collide.
	conflictsLeft int
}

func newMockStore() *mockStore {
	return &mockStore{
		staff:        make(map[uuid.UUID]*model.Staff),
		companies:    make(map[uuid.UUID]*model.Company),
		meals:        make(map[uuid.UUID]*model.Meal),
		orders:       make(map[uuid.UUID]*model.Order),
		invoices:     make(map[uuid.UUID]*model.Invoice),
		caches:       make(map[uuid.UUID]*model.RecommendationCache),
		orderNumbers: make(map[string]bool),
	}
}

func (m *mockStore) addCompany(c model.Company) uuid.UUID {
	c.ID = uuid.New()
	m.companies[c.ID] = &c
	return c.ID
}

func (m *mockStore) addStaff(s model.Staff) uuid.UUID {
	s.ID = uuid.New()
	m.staff[s.ID] = &s
	return s.ID
}

func (m *mockStore) addMeal(meal model.Meal) uuid.UUID {
	meal.ID = uuid.New()
	m.meals[meal.ID] = &meal
	return meal.ID
}

func (m *mockStore) addOrder(o model.Order) uuid.UUID {
	o.ID = uuid.New()
	m.orders[o.ID] = &o
	return o.ID
}

func (m *mockStore) addInvoice(inv model.Invoice) uuid.UUID {
	inv.ID = uuid.New()
	m.invoices[inv.ID] = &inv
	return inv.ID
}

// --- GuardStore ---

func (m *mockStore) CountActiveOrdersForMealDate(_ context.Context, mealID uuid.UUID, date time.Time) (int, error) {
	n := 0
	for _, o := range m.orders {
		if o.MealID == mealID && o.DeliveryDate.Equal(date) && o.Status != enum.OrderStatusCancelled {
			n++
		}
	}
	return n, nil
}

// --- OrderStore ---

func (m *mockStore) GetStaff(_ context.Context, id uuid.UUID) (*model.Staff, error) {
	s, ok := m.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockStore) GetMeal(_ context.Context, id uuid.UUID) (*model.Meal, error) {
	meal, ok := m.meals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *meal
	return &cp, nil
}

func (m *mockStore) CreateOrder(_ context.Context, o *model.Order) (uuid.UUID, error) {
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return uuid.Nil, repository.ErrOrderNumberConflict
	}
	if m.orderNumbers[o.OrderNumber] {
		return uuid.Nil, repository.ErrOrderNumberConflict
	}
	m.orderNumbers[o.OrderNumber] = true
	cp := *o
	cp.ID = uuid.New()
	m.orders[cp.ID] = &cp
	return cp.ID, nil
}

func (m *mockStore) GetOrder(_ context.Context, id uuid.UUID) (*model.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockStore) ListOrdersByStaff(_ context.Context, staffID uuid.UUID, status string, limit, offset int) ([]model.Order, error) {
	var res []model.Order
	for _, o := range m.orders {
		if o.StaffID == staffID && (status == "" || o.Status == status) {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (m *mockStore) ListOrdersForDate(_ context.Context, date time.Time) ([]model.Order, error) {
	var res []model.Order
	for _, o := range m.orders {
		if o.DeliveryDate.Equal(date) && o.Status != enum.OrderStatusCancelled {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (m *mockStore) ListCompanyOrders(_ context.Context, companyID uuid.UUID, start, end time.Time) ([]model.Order, error) {
	var res []model.Order
	for _, o := range m.orders {
		if o.CompanyID == companyID && !o.DeliveryDate.Before(start) && o.DeliveryDate.Before(end) &&
			o.Status != enum.OrderStatusCancelled {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (m *mockStore) ApplyOrderTransition(_ context.Context, u repository.TransitionUpdate) (bool, error) {
	o, ok := m.orders[u.OrderID]
	if !ok || o.Status != u.From {
		return false, nil
	}
	o.Status = u.To
	at := u.At
	switch u.To {
	case enum.OrderStatusPreparing:
		o.PreparingAt = &at
	case enum.OrderStatusOutForDelivery:
		o.OutForDeliveryAt = &at
		o.RiderID = u.RiderID
		o.RiderName = u.RiderName
		o.RiderPhone = u.RiderPhone
	case enum.OrderStatusDelivered:
		o.DeliveredAt = &at
	case enum.OrderStatusCancelled:
		o.CancelledAt = &at
	}
	return true, nil
}

func (m *mockStore) ListOrdersForSweep(_ context.Context, status string, stampBefore time.Time, deliveryDate *time.Time) ([]model.Order, error) {
	var res []model.Order
	for _, o := range m.orders {
		if o.Status != status {
			continue
		}
		var stamp *time.Time
		switch status {
		case enum.OrderStatusConfirmed:
			stamp = o.ConfirmedAt
		case enum.OrderStatusPreparing:
			stamp = o.PreparingAt
		case enum.OrderStatusOutForDelivery:
			stamp = o.OutForDeliveryAt
		}
		if stamp == nil || !stamp.Before(stampBefore) {
			continue
		}
		if deliveryDate != nil && !o.DeliveryDate.Equal(*deliveryDate) {
			continue
		}
		res = append(res, *o)
	}
	return res, nil
}

func (m *mockStore) ForceCancelOrder(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Status = enum.OrderStatusCancelled
	o.CancelledAt = &at
	if o.Notes == "" {
		o.Notes = "Refund: " + reason
	} else {
		o.Notes = o.Notes + "\n\nRefund: " + reason
	}
	return nil
}

// --- InvoiceStore ---

func (m *mockStore) GetCompany(_ context.Context, id uuid.UUID) (*model.Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) ListActiveCompanies(_ context.Context) ([]model.Company, error) {
	var res []model.Company
	for _, c := range m.companies {
		if c.IsActive {
			res = append(res, *c)
		}
	}
	return res, nil
}

func (m *mockStore) ListInvoiceableOrders(_ context.Context, companyID uuid.UUID, start, end time.Time) ([]model.Order, error) {
	var res []model.Order
	for _, o := range m.orders {
		if o.CompanyID == companyID &&
			o.Status == enum.OrderStatusDelivered &&
			!o.IsPaid && o.InvoiceID == nil &&
			!o.DeliveryDate.Before(start) && o.DeliveryDate.Before(end) {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (m *mockStore) CreateInvoiceWithClaims(_ context.Context, inv *model.Invoice, orderIDs []uuid.UUID) (uuid.UUID, error) {
	// All-or-nothing, like the real transaction.
	for _, id := range orderIDs {
		o, ok := m.orders[id]
		if !ok || o.InvoiceID != nil || o.IsPaid {
			return uuid.Nil, repository.ErrOrderAlreadyClaimed
		}
	}
	cp := *inv
	cp.ID = uuid.New()
	m.invoices[cp.ID] = &cp
	for _, id := range orderIDs {
		invID := cp.ID
		m.orders[id].InvoiceID = &invID
	}
	return cp.ID, nil
}

func (m *mockStore) GetInvoice(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockStore) ListInvoicesByCompany(_ context.Context, companyID uuid.UUID) ([]model.Invoice, error) {
	var res []model.Invoice
	for _, inv := range m.invoices {
		if inv.CompanyID == companyID {
			res = append(res, *inv)
		}
	}
	return res, nil
}

func (m *mockStore) ListInvoiceOrders(_ context.Context, invoiceID uuid.UUID) ([]model.Order, error) {
	var res []model.Order
	for _, o := range m.orders {
		if o.InvoiceID != nil && *o.InvoiceID == invoiceID {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (m *mockStore) MarkInvoicePaid(_ context.Context, invoiceID uuid.UUID, providerRef string, at time.Time) (bool, error) {
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if inv.Status == enum.InvoiceStatusPaid {
		return false, nil
	}
	inv.Status = enum.InvoiceStatusPaid
	paidAt := at
	inv.PaidAt = &paidAt
	inv.ProviderReference = providerRef
	for _, o := range m.orders {
		if o.InvoiceID != nil && *o.InvoiceID == invoiceID {
			o.IsPaid = true
		}
	}
	return true, nil
}

func (m *mockStore) MarkOverdueInvoices(_ context.Context, now time.Time) ([]model.Invoice, error) {
	var res []model.Invoice
	for _, inv := range m.invoices {
		if inv.Status == enum.InvoiceStatusPending && inv.DueDate.Before(now) {
			inv.Status = enum.InvoiceStatusOverdue
			res = append(res, *inv)
		}
	}
	return res, nil
}

func (m *mockStore) GetInvoiceStats(_ context.Context, companyID uuid.UUID) (*repository.InvoiceStats, error) {
	var s repository.InvoiceStats
	for _, inv := range m.invoices {
		if inv.CompanyID != companyID {
			continue
		}
		s.InvoiceCount++
		s.TotalInvoiced += inv.Total
		if inv.Status == enum.InvoiceStatusPaid {
			s.PaidCount++
			s.TotalPaid += inv.Total
		} else {
			s.TotalOutstanding += inv.Total
		}
		if inv.Status == enum.InvoiceStatusOverdue {
			s.OverdueCount++
		}
	}
	return &s, nil
}

// --- RecommendStore ---

func (m *mockStore) ListMeals(_ context.Context, availableOnly bool) ([]model.Meal, error) {
	var res []model.Meal
	for _, meal := range m.meals {
		if availableOnly && !meal.IsAvailable {
			continue
		}
		res = append(res, *meal)
	}
	return res, nil
}

func (m *mockStore) GetRecommendationCache(_ context.Context, staffID uuid.UUID, now time.Time) (*model.RecommendationCache, error) {
	c, ok := m.caches[staffID]
	if !ok || !c.ExpiresAt.After(now) {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) UpsertRecommendationCache(_ context.Context, c *model.RecommendationCache) error {
	cp := *c
	m.caches[c.StaffID] = &cp
	return nil
}

func (m *mockStore) DeleteRecommendationCache(_ context.Context, staffID uuid.UUID) error {
	delete(m.caches, staffID)
	return nil
}

func (m *mockStore) DeleteExpiredCache(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, c := range m.caches {
		if !c.ExpiresAt.After(now) {
			delete(m.caches, id)
			n++
		}
	}
	return n, nil
}

// --- ReminderStore ---

func (m *mockStore) ListStaffWithoutOrderForDate(_ context.Context, date time.Time) ([]model.Staff, error) {
	var res []model.Staff
	for _, s := range m.staff {
		if !s.IsActive {
			continue
		}
		ordered := false
		for _, o := range m.orders {
			if o.StaffID == s.ID && o.DeliveryDate.Equal(date) && o.Status != enum.OrderStatusCancelled {
				ordered = true
				break
			}
		}
		if !ordered {
			res = append(res, *s)
		}
	}
	return res, nil
}

// recordNotifier counts notification events by name.
type recordNotifier struct {
	events []string
}

func (n *recordNotifier) Notify(event string, _ uuid.UUID, _ any) {
	n.events = append(n.events, event)
}

func (n *recordNotifier) count(event string) int {
	c := 0
	for _, e := range n.events {
		if e == event {
			c++
		}
	}
	return c
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// date builds a calendar date (midnight UTC), the form delivery dates use.
func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// at builds a business-local instant for a UTC+1 resolver: the returned
// UTC instant reads as the given local wall clock.
func at(y int, m time.Month, d, hour, min int) time.Time {
	return time.Date(y, m, d, hour-1, min, 0, 0, time.UTC)
}
