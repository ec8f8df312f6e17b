// Package model contains the domain entities of the ordering platform.
// All monetary fields are int64 amounts in kobo (minor currency units);
// conversion to naira happens at the presentation boundary only.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Company is the billing counterparty for its staff's orders.
type Company struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Phone        string
	Address      string
	CompanyCode  string
	PaymentModel string
	BillingDay   int
	IsActive     bool
	CreatedAt    time.Time
}

// Staff is an employee who places orders against their company's account.
type Staff struct {
	ID           uuid.UUID
	Email        string
	PasswordHash []byte
	Name         string
	Phone        string
	StaffCode    string
	CompanyID    uuid.UUID
	Role         string
	IsOnboarded  bool
	IsActive     bool
	CreatedAt    time.Time
}

// Meal is a menu item. BasePrice is captured onto orders at creation time;
// later edits never affect existing orders.
type Meal struct {
	ID               uuid.UUID
	Name             string
	Description      string
	Category         string
	Cuisine          string
	Calories         int32
	Protein          int32
	Carbs            int32
	Fats             int32
	Fiber            int32
	Sugar            int32
	Sodium           int32
	Ingredients      []string
	ImageURL         string
	BasePrice        int64
	IsAvailable      bool
	AvailableDays    []int32
	MaxDailyCapacity *int32
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Order is the central entity. Status and the transition timestamps move
// together; Price is fixed at creation.
type Order struct {
	ID               uuid.UUID
	OrderNumber      string
	StaffID          uuid.UUID
	CompanyID        uuid.UUID
	MealID           uuid.UUID
	Quantity         int32
	Price            int64
	DeliveryDate     time.Time
	DeliveryAddress  string
	Notes            string
	Status           string
	ConfirmedAt      *time.Time
	PreparingAt      *time.Time
	OutForDeliveryAt *time.Time
	DeliveredAt      *time.Time
	CancelledAt      *time.Time
	RiderID          *uuid.UUID
	RiderName        string
	RiderPhone       string
	IsPaid           bool
	InvoiceID        *uuid.UUID
	CreatedAt        time.Time
}

// Invoice is a per-company monthly roll-up of delivered, unpaid orders.
// The orders claimed by an invoice always sum to its Subtotal.
type Invoice struct {
	ID                uuid.UUID
	InvoiceNumber     string
	CompanyID         uuid.UUID
	BillingMonth      int
	BillingYear       int
	Subtotal          int64
	Tax               int64
	Total             int64
	Status            string
	DueDate           time.Time
	PaidAt            *time.Time
	ProviderReference string
	CreatedAt         time.Time
}

// RankedMeal is one entry of a recommendation, ordered best-first.
type RankedMeal struct {
	MealID uuid.UUID `json:"meal_id"`
	Score  float64   `json:"score"`
}

// RecommendationCache holds a staff member's cached ranked meals.
// At most one live row per staff id; writes are upserts.
type RecommendationCache struct {
	StaffID     uuid.UUID
	Meals       []RankedMeal
	GeneratedAt time.Time
	ExpiresAt   time.Time
}
