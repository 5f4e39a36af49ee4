package statemachine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"food-distribution-api/models"
	"food-distribution-api/pricing"

	"github.com/shopspring/decimal"
)

// Transition defines a valid state change and who can perform it
type Transition struct {
	From   []models.OrderState `json:"from"`
	Action models.Action       `json:"action"`
	To     models.OrderState   `json:"to"`
	Actor  string              `json:"actor"`
}

// validTransitions is the authoritative state machine definition.
// AWAITING_CONFIRMATION → COMPLETED is not listed: it is derived inside
// the confirmation that sets the second flag.
var validTransitions = []Transition{
	{
		From:   []models.OrderState{models.StatePlaced},
		Action: models.ActionSetLinePrices,
		To:     models.StatePriced,
		Actor:  "admin",
	},
	{
		From:   []models.OrderState{models.StatePlaced, models.StatePriced},
		Action: models.ActionCancel,
		To:     models.StateCancelled,
		Actor:  "admin, or owning restaurant while PLACED",
	},
	{
		From:   []models.OrderState{models.StatePriced},
		Action: models.ActionAssignDriver,
		To:     models.StateAssigned,
		Actor:  "admin",
	},
	{
		From:   []models.OrderState{models.StateAssigned},
		Action: models.ActionMarkOutForDelivery,
		To:     models.StateOutForDelivery,
		Actor:  "admin",
	},
	{
		From:   []models.OrderState{models.StateOutForDelivery, models.StateAwaitingConfirmation},
		Action: models.ActionDriverConfirmDelivery,
		To:     models.StateAwaitingConfirmation,
		Actor:  "assigned driver",
	},
	{
		From:   []models.OrderState{models.StateOutForDelivery, models.StateAwaitingConfirmation},
		Action: models.ActionRestaurantConfirmReceipt,
		To:     models.StateAwaitingConfirmation,
		Actor:  "owning restaurant",
	},
}

// Guard failure reasons.
const (
	ReasonWrongState        = "wrong_state"
	ReasonUnsupportedAction = "unsupported_action"
	ReasonUnpricedLine      = "unpriced_line"
	ReasonUnknownLine       = "unknown_line"
	ReasonInvalidPrice      = "invalid_price"
	ReasonDriverUnknown     = "driver_unknown"
	ReasonDriverUnavailable = "driver_unavailable"
)

// GuardError reports the first failing guard of a rejected transition.
type GuardError struct {
	Action models.Action
	State  models.OrderState
	Reason string
	Err    error
}

func (e *GuardError) Error() string {
	msg := fmt.Sprintf("invalid transition: %s is not allowed from %s (%s)", e.Action, e.State, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GuardError) Unwrap() error { return e.Err }

// Request carries everything a transition's guards need. The state
// machine performs no I/O: the caller resolves Driver beforehand.
type Request struct {
	Action    models.Action
	ActorID   string
	ActorRole models.UserRole
	Prices    map[string]decimal.Decimal
	Driver    *models.User
	Now       time.Time
}

// Result is the outcome of an accepted request. When Changed is false
// the request was an idempotent no-op and nothing must be written.
type Result struct {
	Order   models.Order
	Changed bool
	Audit   *models.AuditEntry
}

// Apply validates req against order and computes the next order value.
// order is never modified. Authorization is the caller's job and must
// happen before Apply.
func Apply(order models.Order, req Request) (Result, error) {
	next := order.Clone()

	if alreadyConfirmed(order, req.Action) {
		return Result{Order: next}, nil
	}

	t, ok := lookup(req.Action)
	if !ok {
		return Result{}, &GuardError{Action: req.Action, State: order.State, Reason: ReasonUnsupportedAction}
	}
	if !stateIn(order.State, t.From) {
		return Result{}, &GuardError{Action: req.Action, State: order.State, Reason: ReasonWrongState}
	}

	now := req.Now
	switch req.Action {
	case models.ActionSetLinePrices:
		if err := pricing.ValidatePrices(order.Lines, req.Prices); err != nil {
			return Result{}, &GuardError{Action: req.Action, State: order.State, Reason: priceReason(err), Err: err}
		}
		next.Lines = pricing.ApplyPrices(order.Lines, req.Prices)
		next.State = models.StatePriced
		next.PricedAt = &now

	case models.ActionCancel:
		next.State = models.StateCancelled
		next.CancelledAt = &now

	case models.ActionAssignDriver:
		if req.Driver == nil || req.Driver.Role != models.RoleDriver {
			return Result{}, &GuardError{Action: req.Action, State: order.State, Reason: ReasonDriverUnknown}
		}
		if !req.Driver.Available {
			return Result{}, &GuardError{Action: req.Action, State: order.State, Reason: ReasonDriverUnavailable}
		}
		driverID := req.Driver.ID
		next.DriverID = &driverID
		next.State = models.StateAssigned
		next.AssignedAt = &now

	case models.ActionMarkOutForDelivery:
		next.State = models.StateOutForDelivery

	case models.ActionDriverConfirmDelivery:
		next.DriverConfirmed = true
		next.DeliveredAt = &now
		settle(&next)

	case models.ActionRestaurantConfirmReceipt:
		next.RestaurantConfirmed = true
		next.ConfirmedAt = &now
		settle(&next)
	}

	audit := &models.AuditEntry{
		OrderID:   order.ID,
		Action:    string(req.Action),
		FromState: order.State,
		ToState:   next.State,
		ActorID:   req.ActorID,
		ActorRole: req.ActorRole,
		Timestamp: now,
	}
	return Result{Order: next, Changed: true, Audit: audit}, nil
}

// settle derives the state after a confirmation flag was written: both
// flags complete the order, one flag leaves it awaiting the other party.
func settle(o *models.Order) {
	if o.DriverConfirmed && o.RestaurantConfirmed {
		o.State = models.StateCompleted
		return
	}
	o.State = models.StateAwaitingConfirmation
}

func alreadyConfirmed(o models.Order, a models.Action) bool {
	switch a {
	case models.ActionDriverConfirmDelivery:
		return o.DriverConfirmed
	case models.ActionRestaurantConfirmReceipt:
		return o.RestaurantConfirmed
	}
	return false
}

func priceReason(err error) string {
	switch {
	case errors.Is(err, pricing.ErrUnknownLine):
		return ReasonUnknownLine
	case errors.Is(err, pricing.ErrInvalidPrice):
		return ReasonInvalidPrice
	default:
		return ReasonUnpricedLine
	}
}

func lookup(a models.Action) (Transition, bool) {
	for _, t := range validTransitions {
		if t.Action == a {
			return t, true
		}
	}
	return Transition{}, false
}

func stateIn(s models.OrderState, states []models.OrderState) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}

// ValidActionsFrom returns the actions accepted from a given state
func ValidActionsFrom(state models.OrderState) []models.Action {
	var actions []models.Action
	for _, t := range validTransitions {
		if stateIn(state, t.From) {
			actions = append(actions, t.Action)
		}
	}
	return actions
}

// CanTransition reports whether action is accepted from state, ignoring
// payload guards.
func CanTransition(state models.OrderState, action models.Action) error {
	t, ok := lookup(action)
	if ok && stateIn(state, t.From) {
		return nil
	}
	return errors.New(
		"invalid transition: " + string(action) + " is not allowed from " + string(state) +
			". Valid actions from " + string(state) + " are: " + describeValidFrom(state),
	)
}

func describeValidFrom(state models.OrderState) string {
	actions := ValidActionsFrom(state)
	if len(actions) == 0 {
		return "none (terminal state)"
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	out := make([]Transition, len(validTransitions))
	copy(out, validTransitions)
	return out
}
