// Package store is the persistence gateway: gorm-backed storage for
// orders, their audit trail, products and user profiles.
//
// One Store serves exactly one dataset. Production and demo data live in
// separate databases, each behind its own Store; a Store refuses to read
// or write rows of the other dataset.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"food-distribution-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("version conflict")
	ErrWrongDataset  = errors.New("order belongs to another dataset")
	ErrDuplicateUser = errors.New("email already registered")
)

type Store struct {
	db      *gorm.DB
	dataset models.Dataset
}

func New(db *gorm.DB, dataset models.Dataset) *Store {
	return &Store{db: db, dataset: dataset}
}

// Migrate creates or updates every table the gateway uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderLine{},
		&models.AuditEntry{},
	)
}

func (s *Store) Dataset() models.Dataset { return s.dataset }

// Ping checks that the underlying database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// OrderFilter narrows ListOrders. Zero values do not filter.
type OrderFilter struct {
	RestaurantID string
	DriverID     string
	State        models.OrderState
	CreatedFrom  time.Time
	CreatedTo    time.Time
	Limit        int
}

// CreateOrder inserts a new order with its lines and the audit entry of
// its creation in one transaction.
func (s *Store) CreateOrder(ctx context.Context, o *models.Order, audit *models.AuditEntry) error {
	if o.Dataset != s.dataset {
		return ErrWrongDataset
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return appendAudit(tx, audit)
	})
}

// UpdateOrder writes o if, and only if, the stored row still has
// expectedVersion, and appends audit in the same transaction. A stale
// version yields ErrConflict and leaves the row untouched. On success
// o.Version is advanced.
func (s *Store) UpdateOrder(ctx context.Context, o *models.Order, expectedVersion int64, audit *models.AuditEntry) error {
	if o.Dataset != s.dataset {
		return ErrWrongDataset
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND dataset = ? AND version = ?", o.ID, s.dataset, expectedVersion).
			Updates(map[string]interface{}{
				"state":                o.State,
				"driver_id":            o.DriverID,
				"driver_confirmed":     o.DriverConfirmed,
				"restaurant_confirmed": o.RestaurantConfirmed,
				"priced_at":            o.PricedAt,
				"assigned_at":          o.AssignedAt,
				"delivered_at":         o.DeliveredAt,
				"confirmed_at":         o.ConfirmedAt,
				"cancelled_at":         o.CancelledAt,
				"version":              expectedVersion + 1,
				"updated_at":           o.UpdatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("update order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ? AND dataset = ?", o.ID, s.dataset).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrConflict
		}

		for _, l := range o.Lines {
			err := tx.Model(&models.OrderLine{}).
				Where("order_id = ? AND product_id = ?", o.ID, l.ProductID).
				Update("unit_price", l.UnitPrice).Error
			if err != nil {
				return fmt.Errorf("update line %s: %w", l.ProductID, err)
			}
		}
		return appendAudit(tx, audit)
	})
	if err != nil {
		return err
	}
	o.Version = expectedVersion + 1
	return nil
}

func appendAudit(tx *gorm.DB, audit *models.AuditEntry) error {
	if audit == nil {
		return nil
	}
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if err := tx.Create(audit).Error; err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// GetOrder returns the order with its lines in placement order.
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("id = ? AND dataset = ?", id, s.dataset).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders scans orders matching f, newest first.
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	query := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("dataset = ?", s.dataset)

	if f.RestaurantID != "" {
		query = query.Where("restaurant_id = ?", f.RestaurantID)
	}
	if f.DriverID != "" {
		query = query.Where("driver_id = ?", f.DriverID)
	}
	if f.State != "" {
		query = query.Where("state = ?", f.State)
	}
	if !f.CreatedFrom.IsZero() {
		query = query.Where("created_at >= ?", f.CreatedFrom.UTC())
	}
	if !f.CreatedTo.IsZero() {
		query = query.Where("created_at < ?", f.CreatedTo.UTC())
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var orders []models.Order
	if err := query.Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// OpenOrders returns the PLACED orders created in [from, to).
func (s *Store) OpenOrders(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	return s.ListOrders(ctx, OrderFilter{State: models.StatePlaced, CreatedFrom: from, CreatedTo: to})
}

// AuditTrail returns every audit entry of an order, oldest first.
func (s *Store) AuditTrail(ctx context.Context, orderID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("timestamp asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
