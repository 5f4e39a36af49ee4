package statemachine

import (
	"errors"
	"fmt"
	"time"

	"food-distribution-api/models"
)

var (
	ErrEmptyOrder      = errors.New("order must have at least one line")
	ErrDuplicateLine   = errors.New("product appears on more than one line")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
)

// LineInput is one requested line of a new order.
type LineInput struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
}

// PlaceRequest describes a new order. ID is assigned by the caller.
type PlaceRequest struct {
	ID           string
	Dataset      models.Dataset
	RestaurantID string
	ActorRole    models.UserRole
	Lines        []LineInput
	Now          time.Time
}

// Place builds a new order in PLACED with every unit price null, and the
// audit entry recording its creation.
func Place(req PlaceRequest) (Result, error) {
	if len(req.Lines) == 0 {
		return Result{}, ErrEmptyOrder
	}
	seen := make(map[string]bool, len(req.Lines))
	lines := make([]models.OrderLine, 0, len(req.Lines))
	for i, in := range req.Lines {
		if in.Quantity <= 0 {
			return Result{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, in.ProductID)
		}
		if seen[in.ProductID] {
			return Result{}, fmt.Errorf("%w: %s", ErrDuplicateLine, in.ProductID)
		}
		seen[in.ProductID] = true
		lines = append(lines, models.OrderLine{
			OrderID:   req.ID,
			ProductID: in.ProductID,
			Position:  i,
			Quantity:  in.Quantity,
		})
	}

	order := models.Order{
		ID:           req.ID,
		Dataset:      req.Dataset,
		RestaurantID: req.RestaurantID,
		State:        models.StatePlaced,
		Lines:        lines,
		Version:      1,
		CreatedAt:    req.Now,
		UpdatedAt:    req.Now,
	}
	audit := &models.AuditEntry{
		OrderID:   req.ID,
		Action:    string(models.ActionCreateOrder),
		ToState:   models.StatePlaced,
		ActorID:   req.RestaurantID,
		ActorRole: req.ActorRole,
		Timestamp: req.Now,
	}
	return Result{Order: order, Changed: true, Audit: audit}, nil
}
