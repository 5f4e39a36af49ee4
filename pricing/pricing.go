// Package pricing holds the procurement aggregation over open orders and
// the all-or-nothing validation for the admin's per-line prices.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"food-distribution-api/models"

	"github.com/shopspring/decimal"
)

var (
	ErrUnpricedLine = errors.New("line has no price")
	ErrUnknownLine  = errors.New("price given for a product not on the order")
	ErrInvalidPrice = errors.New("price must be greater than zero with at most two decimals")
)

// MaxUnitPrice is the largest price a numeric(12,2) column holds.
var MaxUnitPrice = decimal.RequireFromString("9999999999.99")

// ValidatePrices checks that prices covers every line of the order with a
// strictly positive price of at most two decimal places, no larger than
// MaxUnitPrice, and names no other product. Partial pricing is rejected
// outright.
func ValidatePrices(lines []models.OrderLine, prices map[string]decimal.Decimal) error {
	onOrder := make(map[string]bool, len(lines))
	for _, l := range lines {
		onOrder[l.ProductID] = true
		p, ok := prices[l.ProductID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnpricedLine, l.ProductID)
		}
		if !validPrice(p) {
			return fmt.Errorf("%w: %s", ErrInvalidPrice, l.ProductID)
		}
	}
	for productID := range prices {
		if !onOrder[productID] {
			return fmt.Errorf("%w: %s", ErrUnknownLine, productID)
		}
	}
	return nil
}

// validPrice reports whether p is stored exactly. Trailing zeros beyond
// the second decimal are allowed.
func validPrice(p decimal.Decimal) bool {
	if !p.IsPositive() || p.GreaterThan(MaxUnitPrice) {
		return false
	}
	return p.Equal(p.Truncate(2))
}

// ApplyPrices returns a copy of lines with every unit price set from
// prices. Callers must have validated prices first.
func ApplyPrices(lines []models.OrderLine, prices map[string]decimal.Decimal) []models.OrderLine {
	out := make([]models.OrderLine, len(lines))
	for i, l := range lines {
		l.UnitPrice = decimal.NewNullDecimal(prices[l.ProductID])
		out[i] = l
	}
	return out
}

// Total sums quantity × unit price. ok is false if any line is unpriced.
func Total(lines []models.OrderLine) (total decimal.Decimal, ok bool) {
	for _, l := range lines {
		if !l.UnitPrice.Valid {
			return decimal.Zero, false
		}
		total = total.Add(l.UnitPrice.Decimal.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return total, len(lines) > 0
}

// DayBounds returns the half-open [start, end) interval covering the
// calendar day of t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Aggregate sums quantities per product over the orders that are still
// Placed and were created within the calendar day of asOf in loc.
func Aggregate(orders []models.Order, asOf time.Time, loc *time.Location) map[string]int64 {
	start, end := DayBounds(asOf, loc)
	totals := make(map[string]int64)
	for _, o := range orders {
		if o.State != models.StatePlaced {
			continue
		}
		if o.CreatedAt.Before(start) || !o.CreatedAt.Before(end) {
			continue
		}
		for _, l := range o.Lines {
			totals[l.ProductID] += l.Quantity
		}
	}
	return totals
}
