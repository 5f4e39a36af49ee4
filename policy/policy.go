// Package policy is the authorization engine: a deny-by-default table
// deciding which role may perform which action on which order, and which
// order fields each role may see.
package policy

import (
	"food-distribution-api/models"
)

// Actor is the authenticated caller, taken verbatim from the session token.
type Actor struct {
	ID   string
	Role models.UserRole
}

// Reason explains a denial.
type Reason string

const (
	ReasonNotOwner      Reason = "not_owner"
	ReasonWrongRole     Reason = "wrong_role"
	ReasonWrongState    Reason = "wrong_state"
	ReasonTerminalOrder Reason = "terminal_order"
)

// Permanent reports whether the denial holds regardless of the order's
// state, i.e. "you can never do this" rather than "not right now".
func (r Reason) Permanent() bool {
	return r == ReasonNotOwner || r == ReasonWrongRole
}

// Decision is the outcome of Decide. A denied Decision always carries a
// Reason.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r Reason) Decision { return Decision{Reason: r} }

type relation int

const (
	anyOrder relation = iota
	ownOrder
	assignedOrder
)

type rule struct {
	relation relation
	// states restricts the rule to these order states; nil means any.
	states []models.OrderState
}

// table is the authoritative policy. Any (action, role) pair missing here
// is denied.
var table = map[models.Action]map[models.UserRole]rule{
	models.ActionCreateOrder: {
		models.RoleRestaurant: {},
		models.RoleDemo:       {},
	},
	models.ActionSetLinePrices: {
		models.RoleAdmin: {relation: anyOrder},
	},
	models.ActionAssignDriver: {
		models.RoleAdmin: {relation: anyOrder},
	},
	models.ActionMarkOutForDelivery: {
		models.RoleAdmin: {relation: anyOrder},
	},
	models.ActionDriverConfirmDelivery: {
		models.RoleDriver: {relation: assignedOrder},
	},
	models.ActionRestaurantConfirmReceipt: {
		models.RoleRestaurant: {relation: ownOrder},
	},
	models.ActionCancel: {
		models.RoleAdmin:      {relation: anyOrder},
		models.RoleRestaurant: {relation: ownOrder, states: []models.OrderState{models.StatePlaced}},
	},
	models.ActionViewOrder: {
		models.RoleAdmin:      {relation: anyOrder},
		models.RoleRestaurant: {relation: ownOrder},
		models.RoleDriver:     {relation: assignedOrder},
		models.RoleDemo:       {relation: anyOrder},
	},
	models.ActionViewAudit: {
		models.RoleAdmin: {relation: anyOrder},
	},
	models.ActionViewAggregate: {
		models.RoleAdmin: {},
	},
}

// Decide evaluates whether actor may perform action on order. order is
// ignored for actions that are not order-scoped (CreateOrder,
// ViewAggregate) and required for everything else.
//
// Checks run in a fixed order and the first failure is reported: role,
// dataset partition and ownership, terminal state, then any role-specific
// state restriction.
func Decide(actor Actor, order *models.Order, action models.Action) Decision {
	byRole, ok := table[action]
	if !ok {
		return deny(ReasonWrongRole)
	}
	r, ok := byRole[actor.Role]
	if !ok {
		return deny(ReasonWrongRole)
	}
	if !action.OrderScoped() {
		return allow()
	}
	if order == nil || order.Dataset != models.DatasetFor(actor.Role) {
		return deny(ReasonNotOwner)
	}

	switch r.relation {
	case ownOrder:
		if !order.OwnedBy(actor.ID) {
			return deny(ReasonNotOwner)
		}
	case assignedOrder:
		if !order.AssignedTo(actor.ID) {
			return deny(ReasonNotOwner)
		}
	}

	if action.Mutates() && order.State.Terminal() {
		// A repeated confirmation on a completed order is a no-op, not a
		// mutation, so it is let through to the state machine.
		if !(action.IsConfirmation() && order.State == models.StateCompleted) {
			return deny(ReasonTerminalOrder)
		}
	}

	if r.states != nil && !containsState(r.states, order.State) {
		return deny(ReasonWrongState)
	}
	return allow()
}

func containsState(states []models.OrderState, s models.OrderState) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}
