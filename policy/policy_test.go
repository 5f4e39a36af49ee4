package policy

import (
	"testing"

	"food-distribution-api/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin      = Actor{ID: "admin-1", Role: models.RoleAdmin}
	restaurant = Actor{ID: "resto-1", Role: models.RoleRestaurant}
	otherResto = Actor{ID: "resto-2", Role: models.RoleRestaurant}
	driver     = Actor{ID: "driver-1", Role: models.RoleDriver}
	otherDrv   = Actor{ID: "driver-2", Role: models.RoleDriver}
	demo       = Actor{ID: "demo-1", Role: models.RoleDemo}
)

func newOrder(state models.OrderState) *models.Order {
	o := &models.Order{
		ID:           "order-1",
		Dataset:      models.DatasetProduction,
		RestaurantID: restaurant.ID,
		State:        state,
		Version:      1,
		Lines: []models.OrderLine{
			{ProductID: "tomato", Quantity: 10, UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("1.25"))},
		},
	}
	if state.Rank() >= models.StateAssigned.Rank() && state != models.StateCancelled {
		d := driver.ID
		o.DriverID = &d
	}
	return o
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		actor  Actor
		state  models.OrderState
		action models.Action
		want   Decision
	}{
		{"restaurant creates", restaurant, "", models.ActionCreateOrder, allow()},
		{"demo creates", demo, "", models.ActionCreateOrder, allow()},
		{"admin cannot create", admin, "", models.ActionCreateOrder, deny(ReasonWrongRole)},
		{"driver cannot create", driver, "", models.ActionCreateOrder, deny(ReasonWrongRole)},

		{"admin prices", admin, models.StatePlaced, models.ActionSetLinePrices, allow()},
		{"restaurant cannot price", restaurant, models.StatePlaced, models.ActionSetLinePrices, deny(ReasonWrongRole)},
		{"driver cannot price", driver, models.StatePlaced, models.ActionSetLinePrices, deny(ReasonWrongRole)},
		{"admin assigns", admin, models.StatePriced, models.ActionAssignDriver, allow()},
		{"admin marks out", admin, models.StateAssigned, models.ActionMarkOutForDelivery, allow()},
		{"driver cannot mark out", driver, models.StateAssigned, models.ActionMarkOutForDelivery, deny(ReasonWrongRole)},

		{"assigned driver confirms", driver, models.StateOutForDelivery, models.ActionDriverConfirmDelivery, allow()},
		{"other driver cannot confirm", otherDrv, models.StateOutForDelivery, models.ActionDriverConfirmDelivery, deny(ReasonNotOwner)},
		{"restaurant cannot confirm delivery", restaurant, models.StateOutForDelivery, models.ActionDriverConfirmDelivery, deny(ReasonWrongRole)},
		{"owner confirms receipt", restaurant, models.StateOutForDelivery, models.ActionRestaurantConfirmReceipt, allow()},
		{"other restaurant cannot confirm", otherResto, models.StateOutForDelivery, models.ActionRestaurantConfirmReceipt, deny(ReasonNotOwner)},
		{"repeat confirmation on completed", driver, models.StateCompleted, models.ActionDriverConfirmDelivery, allow()},
		{"confirmation on cancelled", restaurant, models.StateCancelled, models.ActionRestaurantConfirmReceipt, deny(ReasonTerminalOrder)},

		{"owner cancels placed", restaurant, models.StatePlaced, models.ActionCancel, allow()},
		{"owner cannot cancel priced", restaurant, models.StatePriced, models.ActionCancel, deny(ReasonWrongState)},
		{"owner cannot cancel assigned", restaurant, models.StateAssigned, models.ActionCancel, deny(ReasonWrongState)},
		{"other restaurant cannot cancel", otherResto, models.StatePlaced, models.ActionCancel, deny(ReasonNotOwner)},
		{"admin cancels priced", admin, models.StatePriced, models.ActionCancel, allow()},
		{"admin cannot cancel completed", admin, models.StateCompleted, models.ActionCancel, deny(ReasonTerminalOrder)},
		{"admin cannot price cancelled", admin, models.StateCancelled, models.ActionSetLinePrices, deny(ReasonTerminalOrder)},

		{"admin views", admin, models.StateCompleted, models.ActionViewOrder, allow()},
		{"owner views", restaurant, models.StatePlaced, models.ActionViewOrder, allow()},
		{"other restaurant cannot view", otherResto, models.StatePlaced, models.ActionViewOrder, deny(ReasonNotOwner)},
		{"assigned driver views", driver, models.StateAssigned, models.ActionViewOrder, allow()},
		{"unassigned driver cannot view", otherDrv, models.StateAssigned, models.ActionViewOrder, deny(ReasonNotOwner)},
		{"demo cannot view production", demo, models.StatePlaced, models.ActionViewOrder, deny(ReasonNotOwner)},

		{"admin reads audit", admin, models.StatePlaced, models.ActionViewAudit, allow()},
		{"owner cannot read audit", restaurant, models.StatePlaced, models.ActionViewAudit, deny(ReasonWrongRole)},
		{"admin reads aggregate", admin, "", models.ActionViewAggregate, allow()},
		{"restaurant cannot read aggregate", restaurant, "", models.ActionViewAggregate, deny(ReasonWrongRole)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o *models.Order
			if tt.state != "" {
				o = newOrder(tt.state)
			}
			assert.Equal(t, tt.want, Decide(tt.actor, o, tt.action))
		})
	}
}

func TestDecideDeniesUnlistedPairs(t *testing.T) {
	allowedRoles := map[models.Action][]models.UserRole{
		models.ActionCreateOrder:              {models.RoleRestaurant, models.RoleDemo},
		models.ActionSetLinePrices:            {models.RoleAdmin},
		models.ActionAssignDriver:             {models.RoleAdmin},
		models.ActionMarkOutForDelivery:       {models.RoleAdmin},
		models.ActionDriverConfirmDelivery:    {models.RoleDriver},
		models.ActionRestaurantConfirmReceipt: {models.RoleRestaurant},
		models.ActionCancel:                   {models.RoleAdmin, models.RoleRestaurant},
		models.ActionViewOrder:                {models.RoleAdmin, models.RoleRestaurant, models.RoleDriver, models.RoleDemo},
		models.ActionViewAudit:                {models.RoleAdmin},
		models.ActionViewAggregate:            {models.RoleAdmin},
	}
	require.Len(t, allowedRoles, len(models.Actions()))

	for _, action := range models.Actions() {
		for _, role := range append(models.Roles(), models.UserRole("customer"), models.UserRole("")) {
			listed := false
			for _, r := range allowedRoles[action] {
				listed = listed || r == role
			}
			if listed {
				continue
			}
			for _, state := range models.States() {
				d := Decide(Actor{ID: restaurant.ID, Role: role}, newOrder(state), action)
				assert.Equal(t, deny(ReasonWrongRole), d, "%s by %q in %s", action, role, state)
			}
		}
	}

	d := Decide(admin, newOrder(models.StatePlaced), models.Action("delete_order"))
	assert.Equal(t, deny(ReasonWrongRole), d)
}

func TestDecideKeepsDatasetsApart(t *testing.T) {
	demoOrder := newOrder(models.StatePlaced)
	demoOrder.Dataset = models.DatasetDemo
	demoOrder.RestaurantID = demo.ID

	assert.True(t, Decide(demo, demoOrder, models.ActionViewOrder).Allowed)
	assert.Equal(t, deny(ReasonNotOwner), Decide(admin, demoOrder, models.ActionViewOrder))
	assert.Equal(t, deny(ReasonNotOwner), Decide(admin, demoOrder, models.ActionSetLinePrices))
	assert.Equal(t, deny(ReasonNotOwner), Decide(demo, newOrder(models.StatePlaced), models.ActionViewOrder))
}

func TestDecideRequiresOrderForScopedActions(t *testing.T) {
	assert.Equal(t, deny(ReasonNotOwner), Decide(admin, nil, models.ActionViewOrder))
	assert.Equal(t, deny(ReasonNotOwner), Decide(admin, nil, models.ActionSetLinePrices))
}

func TestReasonPermanent(t *testing.T) {
	assert.True(t, ReasonWrongRole.Permanent())
	assert.True(t, ReasonNotOwner.Permanent())
	assert.False(t, ReasonWrongState.Permanent())
	assert.False(t, ReasonTerminalOrder.Permanent())
}
