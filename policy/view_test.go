package policy

import (
	"encoding/json"
	"testing"

	"food-distribution-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibleFields(t *testing.T) {
	assigned := newOrder(models.StateAssigned)
	placed := newOrder(models.StatePlaced)

	assert.Equal(t, AllFields, VisibleFields(admin, assigned))
	assert.Equal(t, AllFields, VisibleFields(restaurant, assigned))
	assert.False(t, VisibleFields(restaurant, placed).Has(FieldUnitPrice))
	assert.False(t, VisibleFields(driver, assigned).Has(FieldUnitPrice))
	assert.True(t, VisibleFields(driver, assigned).Has(FieldLines))
	assert.Zero(t, VisibleFields(otherDrv, assigned))
	assert.Zero(t, VisibleFields(otherResto, placed))
}

func TestProjectHidesPricesFromDriver(t *testing.T) {
	o := newOrder(models.StateOutForDelivery)

	view, ok := Project(driver, o)
	require.True(t, ok)
	require.Len(t, view.Lines, 1)
	assert.Nil(t, view.Lines[0].UnitPrice)
	assert.Nil(t, view.Total)
	assert.Equal(t, int64(10), view.Lines[0].Quantity)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "unit_price")
	assert.NotContains(t, string(raw), "total")
}

func TestProjectShowsPricesToOwnerOncePriced(t *testing.T) {
	o := newOrder(models.StatePriced)

	view, ok := Project(restaurant, o)
	require.True(t, ok)
	require.NotNil(t, view.Lines[0].UnitPrice)
	assert.Equal(t, "1.25", view.Lines[0].UnitPrice.StringFixed(2))
	require.NotNil(t, view.Total)
	assert.Equal(t, "12.50", view.Total.StringFixed(2))
	require.NotNil(t, view.RestaurantConfirmed)
	assert.False(t, *view.RestaurantConfirmed)
}

func TestProjectDenied(t *testing.T) {
	view, ok := Project(otherResto, newOrder(models.StatePlaced))
	assert.False(t, ok)
	assert.Equal(t, OrderView{}, view)
}
