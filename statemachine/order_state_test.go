package statemachine

import (
	"errors"
	"testing"
	"time"

	"food-distribution-api/models"
	"food-distribution-api/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func placed(t *testing.T) models.Order {
	t.Helper()
	res, err := Place(PlaceRequest{
		ID:           "order-1",
		Dataset:      models.DatasetProduction,
		RestaurantID: "resto-1",
		ActorRole:    models.RoleRestaurant,
		Lines: []LineInput{
			{ProductID: "tomato", Quantity: 10},
			{ProductID: "onion", Quantity: 4},
		},
		Now: t0,
	})
	require.NoError(t, err)
	return res.Order
}

func prices(kv ...string) map[string]decimal.Decimal {
	m := map[string]decimal.Decimal{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = decimal.RequireFromString(kv[i+1])
	}
	return m
}

var availableDriver = &models.User{ID: "driver-1", Role: models.RoleDriver, Available: true}

func step(t *testing.T, o models.Order, req Request) models.Order {
	t.Helper()
	if req.Now.IsZero() {
		req.Now = t0.Add(time.Hour)
	}
	res, err := Apply(o, req)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.NotNil(t, res.Audit)
	assert.Equal(t, o.State, res.Audit.FromState)
	assert.Equal(t, res.Order.State, res.Audit.ToState)
	return res.Order
}

func outForDelivery(t *testing.T) models.Order {
	t.Helper()
	o := placed(t)
	o = step(t, o, Request{Action: models.ActionSetLinePrices, Prices: prices("tomato", "1.20", "onion", "0.80")})
	o = step(t, o, Request{Action: models.ActionAssignDriver, Driver: availableDriver})
	return step(t, o, Request{Action: models.ActionMarkOutForDelivery})
}

func TestPlace(t *testing.T) {
	o := placed(t)
	assert.Equal(t, models.StatePlaced, o.State)
	assert.Equal(t, int64(1), o.Version)
	require.Len(t, o.Lines, 2)
	for i, l := range o.Lines {
		assert.Equal(t, i, l.Position)
		assert.False(t, l.UnitPrice.Valid)
	}
}

func TestPlaceRejectsMalformedOrders(t *testing.T) {
	cases := map[string]struct {
		lines []LineInput
		want  error
	}{
		"empty":     {nil, ErrEmptyOrder},
		"zero qty":  {[]LineInput{{ProductID: "tomato", Quantity: 0}}, ErrInvalidQuantity},
		"negative":  {[]LineInput{{ProductID: "tomato", Quantity: -2}}, ErrInvalidQuantity},
		"duplicate": {[]LineInput{{ProductID: "tomato", Quantity: 1}, {ProductID: "tomato", Quantity: 2}}, ErrDuplicateLine},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Place(PlaceRequest{ID: "o", RestaurantID: "r", Lines: tc.lines, Now: t0})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHappyPath(t *testing.T) {
	o := outForDelivery(t)
	assert.Equal(t, models.StateOutForDelivery, o.State)
	require.NotNil(t, o.DriverID)
	assert.Equal(t, "driver-1", *o.DriverID)

	o = step(t, o, Request{Action: models.ActionDriverConfirmDelivery})
	assert.Equal(t, models.StateAwaitingConfirmation, o.State)
	assert.NotNil(t, o.DeliveredAt)

	o = step(t, o, Request{Action: models.ActionRestaurantConfirmReceipt})
	assert.Equal(t, models.StateCompleted, o.State)
	assert.True(t, o.DriverConfirmed)
	assert.True(t, o.RestaurantConfirmed)
	assert.NotNil(t, o.ConfirmedAt)
}

func TestConfirmationsCommute(t *testing.T) {
	start := outForDelivery(t)

	a := step(t, start, Request{Action: models.ActionDriverConfirmDelivery})
	a = step(t, a, Request{Action: models.ActionRestaurantConfirmReceipt})

	b := step(t, start, Request{Action: models.ActionRestaurantConfirmReceipt})
	assert.Equal(t, models.StateAwaitingConfirmation, b.State)
	b = step(t, b, Request{Action: models.ActionDriverConfirmDelivery})

	assert.Equal(t, a.State, b.State)
	assert.Equal(t, a.DriverConfirmed, b.DriverConfirmed)
	assert.Equal(t, a.RestaurantConfirmed, b.RestaurantConfirmed)
	assert.Equal(t, models.StateCompleted, b.State)
}

func TestConfirmationIsIdempotent(t *testing.T) {
	o := step(t, outForDelivery(t), Request{Action: models.ActionDriverConfirmDelivery})

	res, err := Apply(o, Request{Action: models.ActionDriverConfirmDelivery, Now: t0.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Nil(t, res.Audit)
	assert.Equal(t, o, res.Order)

	done := step(t, o, Request{Action: models.ActionRestaurantConfirmReceipt})
	for _, a := range []models.Action{models.ActionDriverConfirmDelivery, models.ActionRestaurantConfirmReceipt} {
		res, err := Apply(done, Request{Action: a})
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, models.StateCompleted, res.Order.State)
	}
}

func TestPricingIsAllOrNothing(t *testing.T) {
	o := placed(t)

	cases := map[string]struct {
		prices map[string]decimal.Decimal
		reason string
		err    error
	}{
		"missing line":  {prices("tomato", "1.20"), ReasonUnpricedLine, pricing.ErrUnpricedLine},
		"extra product": {prices("tomato", "1.20", "onion", "0.80", "leek", "2"), ReasonUnknownLine, pricing.ErrUnknownLine},
		"zero price":    {prices("tomato", "1.20", "onion", "0"), ReasonInvalidPrice, pricing.ErrInvalidPrice},
		"negative":      {prices("tomato", "-1", "onion", "0.80"), ReasonInvalidPrice, pricing.ErrInvalidPrice},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Apply(o, Request{Action: models.ActionSetLinePrices, Prices: tc.prices, Now: t0})
			var g *GuardError
			require.True(t, errors.As(err, &g))
			assert.Equal(t, tc.reason, g.Reason)
			assert.ErrorIs(t, err, tc.err)
			for _, l := range o.Lines {
				assert.False(t, l.UnitPrice.Valid, "input order must not be modified")
			}
		})
	}
}

func TestAssignDriverGuards(t *testing.T) {
	o := step(t, placed(t), Request{Action: models.ActionSetLinePrices, Prices: prices("tomato", "1", "onion", "1")})

	cases := map[string]struct {
		driver *models.User
		reason string
	}{
		"unknown":     {nil, ReasonDriverUnknown},
		"not driver":  {&models.User{ID: "resto-9", Role: models.RoleRestaurant, Available: true}, ReasonDriverUnknown},
		"unavailable": {&models.User{ID: "driver-2", Role: models.RoleDriver}, ReasonDriverUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Apply(o, Request{Action: models.ActionAssignDriver, Driver: tc.driver})
			var g *GuardError
			require.True(t, errors.As(err, &g))
			assert.Equal(t, tc.reason, g.Reason)
		})
	}
}

func TestWrongState(t *testing.T) {
	o := placed(t)
	for _, a := range []models.Action{
		models.ActionAssignDriver, models.ActionMarkOutForDelivery,
		models.ActionDriverConfirmDelivery, models.ActionRestaurantConfirmReceipt,
	} {
		_, err := Apply(o, Request{Action: a, Driver: availableDriver})
		var g *GuardError
		require.True(t, errors.As(err, &g), a)
		assert.Equal(t, ReasonWrongState, g.Reason, a)
	}

	_, err := Apply(o, Request{Action: models.ActionViewOrder})
	var g *GuardError
	require.True(t, errors.As(err, &g))
	assert.Equal(t, ReasonUnsupportedAction, g.Reason)
}

// Every accepted action from every reachable state moves forward along
// the lifecycle or stays put.
func TestTransitionsNeverGoBackwards(t *testing.T) {
	requests := []Request{
		{Action: models.ActionSetLinePrices, Prices: prices("tomato", "1.20", "onion", "0.80")},
		{Action: models.ActionAssignDriver, Driver: availableDriver},
		{Action: models.ActionMarkOutForDelivery},
		{Action: models.ActionDriverConfirmDelivery},
		{Action: models.ActionRestaurantConfirmReceipt},
		{Action: models.ActionCancel},
	}

	seen := map[string]bool{}
	queue := []models.Order{placed(t)}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, req := range requests {
			req.Now = t0
			res, err := Apply(cur, req)
			if err != nil {
				continue
			}
			assert.GreaterOrEqual(t, res.Order.State.Rank(), cur.State.Rank(), "%s from %s", req.Action, cur.State)
			if cur.State.Terminal() {
				assert.Equal(t, cur.State, res.Order.State, "%s left terminal %s", req.Action, cur.State)
			}
			key := string(res.Order.State)
			if res.Order.DriverConfirmed {
				key += "+d"
			}
			if res.Order.RestaurantConfirmed {
				key += "+r"
			}
			if !seen[key] {
				seen[key] = true
				queue = append(queue, res.Order)
			}
		}
	}
	assert.True(t, seen[string(models.StateCompleted)+"+d+r"])
	assert.True(t, seen[string(models.StateCancelled)])
}

func TestValidActionsFrom(t *testing.T) {
	assert.ElementsMatch(t,
		[]models.Action{models.ActionSetLinePrices, models.ActionCancel},
		ValidActionsFrom(models.StatePlaced))
	assert.ElementsMatch(t,
		[]models.Action{models.ActionDriverConfirmDelivery, models.ActionRestaurantConfirmReceipt},
		ValidActionsFrom(models.StateAwaitingConfirmation))
	assert.Empty(t, ValidActionsFrom(models.StateCompleted))
	assert.Empty(t, ValidActionsFrom(models.StateCancelled))
}

func TestCanTransition(t *testing.T) {
	assert.NoError(t, CanTransition(models.StatePriced, models.ActionAssignDriver))

	err := CanTransition(models.StateCompleted, models.ActionCancel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none (terminal state)")

	err = CanTransition(models.StatePlaced, models.ActionMarkOutForDelivery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(models.ActionSetLinePrices))
}

func TestGetAllTransitionsReturnsCopy(t *testing.T) {
	all := GetAllTransitions()
	require.NotEmpty(t, all)
	all[0].To = models.StateCancelled
	assert.Equal(t, models.StatePriced, GetAllTransitions()[0].To)
}
