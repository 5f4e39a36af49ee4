package models

import (
	"time"
)

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleRestaurant UserRole = "restaurant"
	RoleDriver     UserRole = "driver"
	RoleDemo       UserRole = "demo"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleRestaurant, RoleDriver, RoleDemo:
		return true
	}
	return false
}

// Roles lists every role, in policy-table order.
func Roles() []UserRole {
	return []UserRole{RoleAdmin, RoleRestaurant, RoleDriver, RoleDemo}
}

type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	DisplayName  string    `json:"display_name" gorm:"not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Role         UserRole  `json:"role" gorm:"not null;index"`
	Available    bool      `json:"available" gorm:"not null"` // drivers only
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
