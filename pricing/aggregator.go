package pricing

import (
	"context"
	"time"

	"food-distribution-api/models"
)

// Source reads the orders that were created in [from, to) and are still
// Placed. A snapshot read is sufficient; orders arriving during the scan
// may or may not be included.
type Source interface {
	OpenOrders(ctx context.Context, from, to time.Time) ([]models.Order, error)
}

// Aggregator computes the daily procurement list for the admin.
type Aggregator struct {
	source Source
	loc    *time.Location
}

func NewAggregator(source Source, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{source: source, loc: loc}
}

// AggregateOpenOrders returns productID → total quantity over all Placed
// orders created on the calendar day of asOfDate.
func (a *Aggregator) AggregateOpenOrders(ctx context.Context, asOfDate time.Time) (map[string]int64, error) {
	start, end := DayBounds(asOfDate, a.loc)
	orders, err := a.source.OpenOrders(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return Aggregate(orders, asOfDate, a.loc), nil
}

// Location is the time zone used to cut calendar days.
func (a *Aggregator) Location() *time.Location { return a.loc }
