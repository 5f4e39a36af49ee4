package orders

import (
	"context"
	"time"

	"food-distribution-api/hub"
	"food-distribution-api/models"
	"food-distribution-api/policy"
	"food-distribution-api/pricing"
	"food-distribution-api/store"
)

// ListFilter narrows ListOrders. Restaurants and drivers are always
// scoped to their own orders whatever the filter says.
type ListFilter struct {
	State        models.OrderState
	RestaurantID string
	DriverID     string
	// Date, if set, keeps orders created on that calendar day.
	Date  time.Time
	Limit int
}

// GetOrder returns the order as actor may see it.
func (e *Engine) GetOrder(ctx context.Context, actor policy.Actor, orderID string) (policy.OrderView, error) {
	o, err := e.gateway(actor).GetOrder(ctx, orderID)
	if err != nil {
		return policy.OrderView{}, fromRead(err)
	}
	if d := policy.Decide(actor, o, models.ActionViewOrder); !d.Allowed {
		return policy.OrderView{}, denied(d)
	}
	view, _ := policy.Project(actor, o)
	return view, nil
}

// ListOrders returns the orders visible to actor, newest first.
func (e *Engine) ListOrders(ctx context.Context, actor policy.Actor, f ListFilter) ([]policy.OrderView, error) {
	if d := policy.Decide(actor, nil, models.ActionViewOrder); d.Reason == policy.ReasonWrongRole {
		return nil, denied(d)
	}

	q := store.OrderFilter{
		State:        f.State,
		RestaurantID: f.RestaurantID,
		DriverID:     f.DriverID,
		Limit:        f.Limit,
	}
	switch actor.Role {
	case models.RoleRestaurant:
		q.RestaurantID = actor.ID
	case models.RoleDriver:
		q.DriverID = actor.ID
	}
	if !f.Date.IsZero() {
		q.CreatedFrom, q.CreatedTo = pricing.DayBounds(f.Date, e.aggregator.Location())
	}

	found, err := e.gateway(actor).ListOrders(ctx, q)
	if err != nil {
		return nil, fromRead(err)
	}
	views := make([]policy.OrderView, 0, len(found))
	for i := range found {
		if view, ok := policy.Project(actor, &found[i]); ok {
			views = append(views, view)
		}
	}
	return views, nil
}

// AuditTrail returns the order's audit entries, oldest first.
func (e *Engine) AuditTrail(ctx context.Context, actor policy.Actor, orderID string) ([]models.AuditEntry, error) {
	gw := e.gateway(actor)
	o, err := gw.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fromRead(err)
	}
	if d := policy.Decide(actor, o, models.ActionViewAudit); !d.Allowed {
		return nil, denied(d)
	}
	entries, err := gw.AuditTrail(ctx, orderID)
	if err != nil {
		return nil, fromRead(err)
	}
	return entries, nil
}

// DailyAggregate returns productID → total quantity over the production
// orders still PLACED that were created on date's calendar day.
func (e *Engine) DailyAggregate(ctx context.Context, actor policy.Actor, date time.Time) (map[string]int64, error) {
	if d := policy.Decide(actor, nil, models.ActionViewAggregate); !d.Allowed {
		return nil, denied(d)
	}
	totals, err := e.aggregator.AggregateOpenOrders(ctx, date)
	if err != nil {
		return nil, fromRead(err)
	}
	return totals, nil
}

// Location is the zone calendar days are cut in.
func (e *Engine) Location() *time.Location { return e.aggregator.Location() }

// Subscribe opens a live event stream for actor. Events are filtered and
// projected for actor by the hub.
func (e *Engine) Subscribe(ctx context.Context, actor policy.Actor) (*hub.Connection, error) {
	if !actor.Role.Valid() {
		return nil, newError(CodeUnauthorized, string(policy.ReasonWrongRole), nil)
	}
	c, err := e.notifier.Subscribe(ctx, actor.ID, actor.Role)
	if err != nil {
		return nil, newError(CodeUnavailable, "", err)
	}
	return c, nil
}
