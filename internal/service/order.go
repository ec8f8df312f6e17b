package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/apperr"
	"github.com/nourishbox/api/internal/clock"
	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/notify"
	"github.com/nourishbox/api/internal/repository"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrInvalidQuantity   = apperr.New(apperr.KindValidation, "quantity must be >= 1")
	ErrOrderNotFound     = apperr.New(apperr.KindNotFound, "order not found")
	ErrMealNotFound      = apperr.New(apperr.KindNotFound, "meal not found")
	ErrStaffNotFound     = apperr.New(apperr.KindNotFound, "staff not found")
	ErrNotOrderOwner     = apperr.New(apperr.KindPermission, "you do not have permission to access this order")
	ErrInvalidTransition = apperr.New(apperr.KindInvalidTransition, "invalid status transition")
)

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *repository.Postgres.
type OrderStore interface {
	GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	GetMeal(ctx context.Context, id uuid.UUID) (*model.Meal, error)
	CreateOrder(ctx context.Context, o *model.Order) (uuid.UUID, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListOrdersByStaff(ctx context.Context, staffID uuid.UUID, status string, limit, offset int) ([]model.Order, error)
	ListOrdersForDate(ctx context.Context, date time.Time) ([]model.Order, error)
	ListCompanyOrders(ctx context.Context, companyID uuid.UUID, start, end time.Time) ([]model.Order, error)
	ApplyOrderTransition(ctx context.Context, u repository.TransitionUpdate) (bool, error)
	ListOrdersForSweep(ctx context.Context, status string, stampBefore time.Time, deliveryDate *time.Time) ([]model.Order, error)
}

// Actor identifies who requests an operation.
type Actor struct {
	StaffID   uuid.UUID
	CompanyID uuid.UUID
	Role      string
}

// System is the actor for autonomous scheduler transitions.
var System = Actor{Role: "SYSTEM"}

// transitionRule describes one edge of the order state machine. The zero
// grace means the edge is human-only until a grace is configured.
type transitionRule struct {
	grace       time.Duration // elapsed time before the scheduler may take the edge
	autonomous  bool          // the scheduler takes this edge at all
	todayOnly   bool          // autonomous edge applies only to today's deliveries
	assignRider bool          // the edge populates rider fields
}

// OrderService owns order creation and the status state machine.
type OrderService struct {
	store    OrderStore
	guard    *Guard
	resolver *clock.Resolver
	clock    clock.Clock
	notifier notify.Notifier
	logger   *zap.SugaredLogger

	// transitions is the explicit state machine: source -> target -> rule.
	// Anything absent is an invalid transition.
	transitions map[string]map[string]transitionRule
}

// NewOrderService creates an OrderService. Grace intervals gate the
// autonomous edges only; human actors may transition at any time.
func NewOrderService(store OrderStore, guard *Guard, resolver *clock.Resolver, clk clock.Clock, notifier notify.Notifier, logger *zap.SugaredLogger, preparingGrace, dispatchGrace, deliveredGrace time.Duration) *OrderService {
	return &OrderService{
		store:    store,
		guard:    guard,
		resolver: resolver,
		clock:    clk,
		notifier: notifier,
		logger:   logger,
		transitions: map[string]map[string]transitionRule{
			enum.OrderStatusConfirmed: {
				enum.OrderStatusPreparing: {grace: preparingGrace, autonomous: true, todayOnly: true},
				enum.OrderStatusCancelled: {},
			},
			enum.OrderStatusPreparing: {
				enum.OrderStatusOutForDelivery: {grace: dispatchGrace, autonomous: true, assignRider: true},
				enum.OrderStatusCancelled:      {},
			},
			enum.OrderStatusOutForDelivery: {
				enum.OrderStatusDelivered: {grace: deliveredGrace, autonomous: true},
			},
		},
	}
}

// CreateOrderRequest is the validated input for placing an order.
type CreateOrderRequest struct {
	StaffID         uuid.UUID
	MealID          uuid.UUID
	Quantity        int32
	DeliveryDate    time.Time
	DeliveryAddress string
	Notes           string
}

// Create admits and places an order. The order is created CONFIRMED; any
// payment is settled later at the invoice level. Retries up to
// maxOrderNumberRetries times on order number collisions.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	staff, err := s.store.GetStaff(ctx, req.StaffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}

	meal, err := s.store.GetMeal(ctx, req.MealID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMealNotFound
		}
		return nil, err
	}

	now := s.clock.Now()
	if err := s.guard.AdmitOrder(ctx, staff, meal, req.DeliveryDate, now); err != nil {
		return nil, err
	}

	// Price is captured at creation; later meal edits never reprice orders.
	confirmedAt := now
	order := &model.Order{
		StaffID:         staff.ID,
		CompanyID:       staff.CompanyID,
		MealID:          meal.ID,
		Quantity:        req.Quantity,
		Price:           meal.BasePrice * int64(req.Quantity),
		DeliveryDate:    req.DeliveryDate,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		Status:          enum.OrderStatusConfirmed,
		ConfirmedAt:     &confirmedAt,
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		order.OrderNumber = generateOrderNumber(now)
		id, err := s.store.CreateOrder(ctx, order)
		if err == nil {
			order.ID = id
			order.CreatedAt = now
			s.notifier.Notify(enum.EventOrderConfirmed, order.CompanyID, orderEvent(order))
			s.logger.Infow("order created", "order_number", order.OrderNumber, "staff_id", staff.ID)
			return order, nil
		}
		if errors.Is(err, repository.ErrOrderNumberConflict) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// generateOrderNumber builds a human-readable, unique-enough order number.
// Collisions are handled by the caller's retry loop.
func generateOrderNumber(now time.Time) string {
	ts := now.UnixMilli() % 100_000_000
	return fmt.Sprintf("NB-%08d-%03d", ts, rand.Intn(1000))
}

// Get returns an order, enforcing ownership: staff see their own orders,
// company admins their company's, platform admin and kitchen all.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*model.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if err := s.authorize(order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) authorize(order *model.Order, actor Actor) error {
	switch actor.Role {
	case enum.RoleAdmin, enum.RoleKitchen, "SYSTEM":
		return nil
	case enum.RoleCompanyAdmin:
		if order.CompanyID != actor.CompanyID {
			return ErrNotOrderOwner
		}
		return nil
	default:
		if order.StaffID != actor.StaffID {
			return ErrNotOrderOwner
		}
		return nil
	}
}

// ListMine returns the actor's own orders.
func (s *OrderService) ListMine(ctx context.Context, actor Actor, status string, limit, offset int) ([]model.Order, error) {
	return s.store.ListOrdersByStaff(ctx, actor.StaffID, status, limit, offset)
}

// ListForDate returns the non-cancelled orders for a delivery date.
// Kitchen view.
func (s *OrderService) ListForDate(ctx context.Context, date time.Time) ([]model.Order, error) {
	return s.store.ListOrdersForDate(ctx, date)
}

// ListForCompany returns a company's non-cancelled orders for one billing
// month. Company admins see their own company; platform admins see any.
func (s *OrderService) ListForCompany(ctx context.Context, companyID uuid.UUID, month, year int, actor Actor) ([]model.Order, error) {
	if actor.Role != enum.RoleAdmin && actor.CompanyID != companyID {
		return nil, apperr.New(apperr.KindPermission, "you do not have permission to access these orders")
	}
	start, end := clock.MonthBounds(month, year)
	return s.store.ListCompanyOrders(ctx, companyID, start, end)
}

// RiderAssignment carries rider fields for the out-for-delivery edge.
type RiderAssignment struct {
	RiderID    *uuid.UUID
	RiderName  string
	RiderPhone string
}

// Transition moves an order to targetStatus on behalf of a human actor.
// The transition table decides validity; the conditional update guards
// against concurrent moves.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, targetStatus string, actor Actor, now time.Time, rider *RiderAssignment) (*model.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if targetStatus == enum.OrderStatusCancelled {
		if err := s.authorize(order, actor); err != nil {
			return nil, err
		}
	}

	rule, ok := s.transitions[order.Status][targetStatus]
	if !ok {
		return nil, apperr.Newf(apperr.KindInvalidTransition,
			"cannot move order from %s to %s", order.Status, targetStatus)
	}

	update := repository.TransitionUpdate{
		OrderID: order.ID,
		From:    order.Status,
		To:      targetStatus,
		At:      now,
	}
	if rule.assignRider {
		if rider == nil {
			r := placeholderRider(order.ID)
			rider = &r
		}
		update.RiderID = rider.RiderID
		update.RiderName = rider.RiderName
		update.RiderPhone = rider.RiderPhone
	}

	applied, err := s.store.ApplyOrderTransition(ctx, update)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Someone else moved the order first.
		return nil, ErrInvalidTransition
	}

	updated, err := s.store.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	// Best effort: a failed notification never rolls back the transition.
	s.notifier.Notify(enum.EventOrderStatusChanged, updated.CompanyID, orderEvent(updated))
	s.logger.Infow("order status updated",
		"order_number", updated.OrderNumber, "status", updated.Status)
	return updated, nil
}

// Cancel cancels the actor's order. Only CONFIRMED and PREPARING orders
// can be cancelled; later states fail with an invalid transition.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, now time.Time) (*model.Order, error) {
	return s.Transition(ctx, orderID, enum.OrderStatusCancelled, actor, now, nil)
}

// SweepStatuses advances every order whose elapsed-time predicate has come
// due. Re-running immediately finds nothing: each advancement rewrites the
// timestamp the predicate reads, so the sweep is idempotent per invocation
// and safe under concurrent schedulers.
func (s *OrderService) SweepStatuses(ctx context.Context, now time.Time) int {
	local := s.resolver.Local(now)
	advanced := 0

	for from, targets := range s.transitions {
		for to, rule := range targets {
			if !rule.autonomous {
				continue
			}
			// Kitchen edges wait for the working day.
			if to == enum.OrderStatusPreparing && local.Hour() < 6 {
				continue
			}
			if to == enum.OrderStatusOutForDelivery && local.Hour() < 7 {
				continue
			}

			var dateFilter *time.Time
			if rule.todayOnly {
				today := s.resolver.DateOf(now)
				dateFilter = &today
			}

			orders, err := s.store.ListOrdersForSweep(ctx, from, now.Add(-rule.grace), dateFilter)
			if err != nil {
				s.logger.Errorw("status sweep query failed", "from", from, "error", err)
				continue
			}

			for i := range orders {
				if _, err := s.Transition(ctx, orders[i].ID, to, System, now, nil); err != nil {
					// A lost race is fine; the other writer advanced it.
					if !apperr.Is(err, apperr.KindInvalidTransition) {
						s.logger.Errorw("autonomous transition failed",
							"order_id", orders[i].ID, "to", to, "error", err)
					}
					continue
				}
				advanced++
			}
		}
	}

	return advanced
}

// placeholderRider derives a deterministic rider from the order id. A real
// deployment plugs a dispatch collaborator in here.
func placeholderRider(orderID uuid.UUID) RiderAssignment {
	n := int(orderID[0])%10 + 1
	return RiderAssignment{
		RiderName:  fmt.Sprintf("Rider %d", n),
		RiderPhone: fmt.Sprintf("080%08d", n*11111111%100000000),
	}
}

func orderEvent(o *model.Order) map[string]any {
	return map[string]any{
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
		"status":       o.Status,
		"staff_id":     o.StaffID,
	}
}
