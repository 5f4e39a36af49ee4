package models

// Action is a user-initiated operation on an order.
type Action string

const (
	ActionCreateOrder              Action = "create_order"
	ActionSetLinePrices            Action = "set_line_prices"
	ActionAssignDriver             Action = "assign_driver"
	ActionMarkOutForDelivery       Action = "mark_out_for_delivery"
	ActionDriverConfirmDelivery    Action = "driver_confirm_delivery"
	ActionRestaurantConfirmReceipt Action = "restaurant_confirm_receipt"
	ActionCancel                   Action = "cancel"
	ActionViewOrder                Action = "view_order"
	ActionViewAudit                Action = "view_audit"
	ActionViewAggregate            Action = "view_aggregate"
)

// Actions lists every action known to the policy table.
func Actions() []Action {
	return []Action{
		ActionCreateOrder, ActionSetLinePrices, ActionAssignDriver,
		ActionMarkOutForDelivery, ActionDriverConfirmDelivery,
		ActionRestaurantConfirmReceipt, ActionCancel, ActionViewOrder,
		ActionViewAudit, ActionViewAggregate,
	}
}

// Mutates reports whether the action writes to an order.
func (a Action) Mutates() bool {
	return a != ActionViewOrder && a != ActionViewAudit && a != ActionViewAggregate
}

// OrderScoped reports whether the action targets an existing order.
func (a Action) OrderScoped() bool {
	return a != ActionCreateOrder && a != ActionViewAggregate
}

// IsConfirmation reports whether the action is one of the two
// commutative, idempotent delivery confirmations.
func (a Action) IsConfirmation() bool {
	return a == ActionDriverConfirmDelivery || a == ActionRestaurantConfirmReceipt
}

// ParseAction maps a wire name to an Action.
func ParseAction(s string) (Action, bool) {
	for _, a := range Actions() {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}
