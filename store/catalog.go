package store

import (
	"context"
	"errors"
	"strings"

	"food-distribution-api/models"

	"gorm.io/gorm"
)

// CreateUser inserts a profile. The email must be unique; a clash with
// an existing profile, including one inserted concurrently, is
// ErrDuplicateUser.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(u.Email)
	db := s.db.WithContext(ctx)
	err := db.Create(u).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateUser
	}
	// Not every driver translates constraint errors; look for the clash.
	var count int64
	if cerr := db.Model(&models.User{}).Where("email = ?", u.Email).Count(&count).Error; cerr == nil && count > 0 {
		return ErrDuplicateUser
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns profiles, optionally restricted to one role.
func (s *Store) ListUsers(ctx context.Context, role models.UserRole) ([]models.User, error) {
	query := s.db.WithContext(ctx)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	var users []models.User
	if err := query.Order("display_name asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SetDriverAvailability flips the availability flag the AssignDriver
// guard reads.
func (s *Store) SetDriverAvailability(ctx context.Context, driverID string, available bool) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND role = ?", driverID, models.RoleDriver).
		Update("available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct overwrites the editable catalog fields of p.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"name_en": p.NameEN,
			"name_fr": p.NameFR,
			"unit":    p.Unit,
			"active":  p.Active,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProducts returns the catalog sorted by English name.
func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	query := s.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var products []models.Product
	if err := query.Order("name_en asc").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
