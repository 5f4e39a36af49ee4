package policy

import (
	"time"

	"food-distribution-api/models"
	"food-distribution-api/pricing"

	"github.com/shopspring/decimal"
)

// FieldSet is a bitmask of order fields an actor may read.
type FieldSet uint16

const (
	FieldID FieldSet = 1 << iota
	FieldRestaurant
	FieldDriver
	FieldState
	FieldLines
	FieldUnitPrice
	FieldTimestamps
	FieldConfirmations

	AllFields = FieldID | FieldRestaurant | FieldDriver | FieldState |
		FieldLines | FieldUnitPrice | FieldTimestamps | FieldConfirmations
)

func (f FieldSet) Has(x FieldSet) bool { return f&x == x }

// VisibleFields returns the fields of order that actor may read. It is
// empty whenever ViewOrder is denied.
func VisibleFields(actor Actor, order *models.Order) FieldSet {
	if !Decide(actor, order, models.ActionViewOrder).Allowed {
		return 0
	}
	fields := AllFields
	switch actor.Role {
	case models.RoleDriver:
		// Prices stay between the distributor and the restaurant.
		fields &^= FieldUnitPrice
	case models.RoleRestaurant:
		if order.State == models.StatePlaced {
			fields &^= FieldUnitPrice
		}
	}
	return fields
}

// LineView is an order line as shown to one actor.
type LineView struct {
	ProductID string           `json:"product_id"`
	Quantity  int64            `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// OrderView is an order filtered through VisibleFields. Hidden fields are
// omitted from the JSON encoding.
type OrderView struct {
	ID                  string            `json:"id"`
	RestaurantID        string            `json:"restaurant_id,omitempty"`
	DriverID            *string           `json:"driver_id,omitempty"`
	State               models.OrderState `json:"state,omitempty"`
	Lines               []LineView        `json:"lines,omitempty"`
	Total               *decimal.Decimal  `json:"total,omitempty"`
	DriverConfirmed     *bool             `json:"driver_confirmed,omitempty"`
	RestaurantConfirmed *bool             `json:"restaurant_confirmed,omitempty"`
	CreatedAt           *time.Time        `json:"created_at,omitempty"`
	PricedAt            *time.Time        `json:"priced_at,omitempty"`
	AssignedAt          *time.Time        `json:"assigned_at,omitempty"`
	DeliveredAt         *time.Time        `json:"delivered_at,omitempty"`
	ConfirmedAt         *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt         *time.Time        `json:"cancelled_at,omitempty"`
	Version             int64             `json:"version"`
}

// Project builds the view of order that actor is entitled to. ok is false
// when the actor may not view the order at all.
func Project(actor Actor, order *models.Order) (view OrderView, ok bool) {
	fields := VisibleFields(actor, order)
	if fields == 0 {
		return OrderView{}, false
	}
	view.Version = order.Version
	if fields.Has(FieldID) {
		view.ID = order.ID
	}
	if fields.Has(FieldRestaurant) {
		view.RestaurantID = order.RestaurantID
	}
	if fields.Has(FieldDriver) && order.DriverID != nil {
		d := *order.DriverID
		view.DriverID = &d
	}
	if fields.Has(FieldState) {
		view.State = order.State
	}
	if fields.Has(FieldLines) {
		view.Lines = make([]LineView, len(order.Lines))
		for i, l := range order.Lines {
			lv := LineView{ProductID: l.ProductID, Quantity: l.Quantity}
			if fields.Has(FieldUnitPrice) && l.UnitPrice.Valid {
				p := l.UnitPrice.Decimal
				lv.UnitPrice = &p
			}
			view.Lines[i] = lv
		}
		if fields.Has(FieldUnitPrice) {
			if total, priced := pricing.Total(order.Lines); priced {
				view.Total = &total
			}
		}
	}
	if fields.Has(FieldConfirmations) {
		dc, rc := order.DriverConfirmed, order.RestaurantConfirmed
		view.DriverConfirmed = &dc
		view.RestaurantConfirmed = &rc
	}
	if fields.Has(FieldTimestamps) {
		created := order.CreatedAt
		view.CreatedAt = &created
		view.PricedAt = order.PricedAt
		view.AssignedAt = order.AssignedAt
		view.DeliveredAt = order.DeliveredAt
		view.ConfirmedAt = order.ConfirmedAt
		view.CancelledAt = order.CancelledAt
	}
	return view, true
}
