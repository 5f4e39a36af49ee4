package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"food-distribution-api/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T, dataset models.Dataset) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return New(db, dataset)
}

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newOrder(dataset models.Dataset, restaurantID string, created time.Time, products ...string) *models.Order {
	id := uuid.NewString()
	o := &models.Order{
		ID:           id,
		Dataset:      dataset,
		RestaurantID: restaurantID,
		State:        models.StatePlaced,
		Version:      1,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for i, p := range products {
		o.Lines = append(o.Lines, models.OrderLine{OrderID: id, ProductID: p, Position: i, Quantity: int64(i + 1)})
	}
	return o
}

func audit(o *models.Order, action models.Action, from models.OrderState, at time.Time) *models.AuditEntry {
	return &models.AuditEntry{
		OrderID:   o.ID,
		Action:    string(action),
		FromState: from,
		ToState:   o.State,
		ActorID:   "actor",
		ActorRole: models.RoleAdmin,
		Timestamp: at,
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	s := newTestStore(t, models.DatasetProduction)
	ctx := context.Background()

	o := newOrder(models.DatasetProduction, "resto-1", base, "tomato", "onion", "leek")
	require.NoError(t, s.CreateOrder(ctx, o, audit(o, models.ActionCreateOrder, "", base)))

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePlaced, got.State)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.CreatedAt.Equal(base))
	require.Len(t, got.Lines, 3)
	for i, want := range []string{"tomato", "onion", "leek"} {
		assert.Equal(t, want, got.Lines[i].ProductID)
		assert.False(t, got.Lines[i].UnitPrice.Valid)
	}

	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOrderCompareAndSwap(t *testing.T) {
	s := newTestStore(t, models.DatasetProduction)
	ctx := context.Background()

	o := newOrder(models.DatasetProduction, "resto-1", base, "tomato", "onion")
	require.NoError(t, s.CreateOrder(ctx, o, audit(o, models.ActionCreateOrder, "", base)))

	priced := o.Clone()
	priced.State = models.StatePriced
	priced.Lines[0].UnitPrice = decimal.NewNullDecimal(decimal.RequireFromString("1.25"))
	priced.Lines[1].UnitPrice = decimal.NewNullDecimal(decimal.RequireFromString("0.40"))
	at := base.Add(time.Minute)
	priced.PricedAt = &at
	require.NoError(t, s.UpdateOrder(ctx, &priced, 1, audit(&priced, models.ActionSetLinePrices, models.StatePlaced, at)))
	assert.Equal(t, int64(2), priced.Version)

	stale := o.Clone()
	stale.State = models.StateCancelled
	err := s.UpdateOrder(ctx, &stale, 1, audit(&stale, models.ActionCancel, models.StatePlaced, at.Add(time.Minute)))
	assert.ErrorIs(t, err, ErrConflict)

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePriced, got.State)
	assert.Equal(t, int64(2), got.Version)
	require.True(t, got.Lines[0].UnitPrice.Valid)
	assert.True(t, got.Lines[0].UnitPrice.Decimal.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, got.Lines[1].UnitPrice.Decimal.Equal(decimal.RequireFromString("0.4")))
	require.NotNil(t, got.PricedAt)

	trail, err := s.AuditTrail(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2, "a rejected write must not leave an audit entry")
	assert.Equal(t, string(models.ActionCreateOrder), trail[0].Action)
	assert.Equal(t, models.StatePlaced, trail[1].FromState)
	assert.Equal(t, models.StatePriced, trail[1].ToState)
	assert.NotEmpty(t, trail[1].ID)

	ghost := newOrder(models.DatasetProduction, "resto-1", base, "tomato")
	assert.ErrorIs(t, s.UpdateOrder(ctx, ghost, 1, nil), ErrNotFound)
}

func TestStoreRefusesOtherDataset(t *testing.T) {
	s := newTestStore(t, models.DatasetProduction)
	ctx := context.Background()

	o := newOrder(models.DatasetDemo, "demo-1", base, "tomato")
	assert.ErrorIs(t, s.CreateOrder(ctx, o, nil), ErrWrongDataset)
	assert.ErrorIs(t, s.UpdateOrder(ctx, o, 1, nil), ErrWrongDataset)
	assert.Equal(t, models.DatasetProduction, s.Dataset())
}

func TestListOrders(t *testing.T) {
	s := newTestStore(t, models.DatasetProduction)
	ctx := context.Background()

	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	a := newOrder(models.DatasetProduction, "resto-1", base, "tomato")
	b := newOrder(models.DatasetProduction, "resto-2", base.Add(time.Hour), "onion")
	c := newOrder(models.DatasetProduction, "resto-1", base.Add(-48*time.Hour), "leek")
	for _, o := range []*models.Order{a, b, c} {
		require.NoError(t, s.CreateOrder(ctx, o, nil))
	}
	b2 := b.Clone()
	b2.State = models.StatePriced
	driver := "driver-1"
	b2.DriverID = &driver
	require.NoError(t, s.UpdateOrder(ctx, &b2, 1, nil))

	all, err := s.ListOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, b.ID, all[0].ID, "newest first")

	mine, err := s.ListOrders(ctx, OrderFilter{RestaurantID: "resto-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	byDriver, err := s.ListOrders(ctx, OrderFilter{DriverID: "driver-1"})
	require.NoError(t, err)
	require.Len(t, byDriver, 1)
	assert.Equal(t, b.ID, byDriver[0].ID)

	// Bounds given in another zone are compared as instants.
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, paris)
	open, err := s.OpenOrders(ctx, from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, a.ID, open[0].ID)

	limited, err := s.ListOrders(ctx, OrderFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestCatalog(t *testing.T) {
	s := newTestStore(t, models.DatasetProduction)
	ctx := context.Background()

	u := &models.User{ID: uuid.NewString(), DisplayName: "Ana", Email: "Ana@Example.com", PasswordHash: "x", Role: models.RoleDriver}
	require.NoError(t, s.CreateUser(ctx, u))
	dup := &models.User{ID: uuid.NewString(), DisplayName: "Ana 2", Email: "ana@example.com", PasswordHash: "x", Role: models.RoleDriver}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrDuplicateUser)

	got, err := s.GetUserByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.Available)

	require.NoError(t, s.SetDriverAvailability(ctx, u.ID, true))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Available)
	require.NoError(t, s.SetDriverAvailability(ctx, u.ID, false))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Available)
	assert.ErrorIs(t, s.SetDriverAvailability(ctx, "nobody", true), ErrNotFound)

	drivers, err := s.ListUsers(ctx, models.RoleDriver)
	require.NoError(t, err)
	assert.Len(t, drivers, 1)

	p := &models.Product{ID: "tomato", NameEN: "Tomato", NameFR: "Tomate", Unit: "kg", Active: true}
	require.NoError(t, s.CreateProduct(ctx, p))
	require.NoError(t, s.CreateProduct(ctx, &models.Product{ID: "leek", NameEN: "Leek", NameFR: "Poireau", Unit: "kg", Active: true}))

	p.Active = false
	p.NameFR = "Tomate ronde"
	require.NoError(t, s.UpdateProduct(ctx, p))
	got2, err := s.GetProduct(ctx, "tomato")
	require.NoError(t, err)
	assert.False(t, got2.Active)
	assert.Equal(t, "Tomate ronde", got2.NameFR)

	active, err := s.ListProducts(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "leek", active[0].ID)

	all, err := s.ListProducts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, s.UpdateProduct(ctx, &models.Product{ID: "ghost"}), ErrNotFound)
	_, err = s.GetProduct(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentRegistrationsWithSameEmail(t *testing.T) {
	s := newTestStore(t, models.DatasetProduction)
	ctx := context.Background()

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := &models.User{ID: uuid.NewString(), DisplayName: "Ana", Email: "ana@example.com", PasswordHash: "x", Role: models.RoleRestaurant}
			errs[i] = s.CreateUser(ctx, u)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateUser)
	}
	assert.Equal(t, 1, created)

	users, err := s.ListUsers(ctx, models.RoleRestaurant)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestPing(t *testing.T) {
	s := newTestStore(t, models.DatasetDemo)
	assert.NoError(t, s.Ping(context.Background()))
}
