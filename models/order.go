package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState represents every state of a distribution order
type OrderState string

const (
	StatePlaced               OrderState = "PLACED"
	StatePriced               OrderState = "PRICED"
	StateAssigned             OrderState = "ASSIGNED"
	StateOutForDelivery       OrderState = "OUT_FOR_DELIVERY"
	StateAwaitingConfirmation OrderState = "AWAITING_CONFIRMATION"
	StateCompleted            OrderState = "COMPLETED"
	StateCancelled            OrderState = "CANCELLED"
)

// States lists every state in lifecycle order, Cancelled last.
func States() []OrderState {
	return []OrderState{
		StatePlaced, StatePriced, StateAssigned, StateOutForDelivery,
		StateAwaitingConfirmation, StateCompleted, StateCancelled,
	}
}

// Terminal reports whether no transition may leave s.
func (s OrderState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Rank orders states along the forward path. Cancelled ranks after
// every state it can be reached from.
func (s OrderState) Rank() int {
	switch s {
	case StatePlaced:
		return 0
	case StatePriced:
		return 1
	case StateAssigned:
		return 2
	case StateOutForDelivery:
		return 3
	case StateAwaitingConfirmation:
		return 4
	case StateCompleted:
		return 5
	case StateCancelled:
		return 6
	}
	return -1
}

// Dataset partitions orders. Demo orders live in their own database and
// are never visible to production actors.
type Dataset string

const (
	DatasetProduction Dataset = "production"
	DatasetDemo       Dataset = "demo"
)

// DatasetFor returns the dataset an actor of the given role works in.
func DatasetFor(role UserRole) Dataset {
	if role == RoleDemo {
		return DatasetDemo
	}
	return DatasetProduction
}

type Order struct {
	ID                  string      `json:"id" gorm:"primaryKey;size:36"`
	Dataset             Dataset     `json:"dataset" gorm:"not null;index"`
	RestaurantID        string      `json:"restaurant_id" gorm:"not null;index"`
	DriverID            *string     `json:"driver_id" gorm:"index"`
	State               OrderState  `json:"state" gorm:"not null;index"`
	Lines               []OrderLine `json:"lines" gorm:"foreignKey:OrderID"`
	DriverConfirmed     bool        `json:"driver_confirmed"`
	RestaurantConfirmed bool        `json:"restaurant_confirmed"`
	Version             int64       `json:"version" gorm:"not null;default:1"`
	CreatedAt           time.Time   `json:"created_at" gorm:"index"`
	PricedAt            *time.Time  `json:"priced_at"`
	AssignedAt          *time.Time  `json:"assigned_at"`
	DeliveredAt         *time.Time  `json:"delivered_at"`
	ConfirmedAt         *time.Time  `json:"confirmed_at"`
	CancelledAt         *time.Time  `json:"cancelled_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// OrderLine is one product + quantity entry. UnitPrice stays null until
// the admin prices the order.
type OrderLine struct {
	ID        uint                `json:"-" gorm:"primaryKey"`
	OrderID   string              `json:"order_id" gorm:"not null;size:36;uniqueIndex:idx_order_product"`
	ProductID string              `json:"product_id" gorm:"not null;size:36;uniqueIndex:idx_order_product"`
	Position  int                 `json:"position" gorm:"not null"`
	Quantity  int64               `json:"quantity" gorm:"not null"`
	UnitPrice decimal.NullDecimal `json:"unit_price" gorm:"type:numeric(12,2)"`
}

// Clone returns a deep copy so callers can compute a next state without
// touching the original value.
func (o Order) Clone() Order {
	cp := o
	if o.Lines != nil {
		cp.Lines = make([]OrderLine, len(o.Lines))
		copy(cp.Lines, o.Lines)
	}
	cp.DriverID = cloneString(o.DriverID)
	cp.PricedAt = cloneTime(o.PricedAt)
	cp.AssignedAt = cloneTime(o.AssignedAt)
	cp.DeliveredAt = cloneTime(o.DeliveredAt)
	cp.ConfirmedAt = cloneTime(o.ConfirmedAt)
	cp.CancelledAt = cloneTime(o.CancelledAt)
	return cp
}

// OwnedBy reports whether userID placed the order.
func (o *Order) OwnedBy(userID string) bool {
	return o.RestaurantID != "" && o.RestaurantID == userID
}

// AssignedTo reports whether userID is the order's driver.
func (o *Order) AssignedTo(userID string) bool {
	return o.DriverID != nil && *o.DriverID == userID
}

// AuditEntry is the append-only record of a committed transition.
// Creation is recorded with an empty FromState.
type AuditEntry struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	OrderID   string     `json:"order_id" gorm:"not null;size:36;index"`
	Action    string     `json:"action" gorm:"not null"`
	FromState OrderState `json:"from_state"`
	ToState   OrderState `json:"to_state" gorm:"not null"`
	ActorID   string     `json:"actor_id" gorm:"not null"`
	ActorRole UserRole   `json:"actor_role" gorm:"not null"`
	Timestamp time.Time  `json:"timestamp" gorm:"not null;index"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
