package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusConfirmed      = "CONFIRMED"
	OrderStatusPreparing      = "PREPARING"
	OrderStatusOutForDelivery = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCancelled      = "CANCELLED"
)

const (
	InvoiceStatusPending = "PENDING"
	InvoiceStatusPaid    = "PAID"
	InvoiceStatusOverdue = "OVERDUE"
)

// ── Group B: Guard deny reasons ──

const (
	DenyOnboardingRequired = "ONBOARDING_REQUIRED"
	DenyMealUnavailable    = "MEAL_UNAVAILABLE"
	DenyDateTooSoon        = "DATE_TOO_SOON"
	DenyDayUnavailable     = "DAY_UNAVAILABLE"
	DenyCapacityReached    = "CAPACITY_REACHED"
	DenyCutoffPassed       = "CUTOFF_PASSED"
)

// ── Group C: Roles and billing (CHECK constrained in DB) ──

const (
	RoleStaff        = "STAFF"
	RoleCompanyAdmin = "COMPANY_ADMIN"
	RoleAdmin        = "ADMIN"
	RoleKitchen      = "KITCHEN"
)

const (
	PaymentModelCompanyPaysAll   = "COMPANY_PAYS_ALL"
	PaymentModelSharedPercentage = "SHARED_PERCENTAGE"
)

// ── Group D: Notification events (no DB constraint) ──

const (
	EventOrderConfirmed     = "order.confirmed"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderReminder      = "order.reminder"
	EventInvoiceIssued      = "invoice.issued"
	EventPaymentConfirmed   = "payment.confirmed"
)
