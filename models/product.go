package models

import "time"

// Product is a catalog line. Prices are never attached here; the admin
// prices each order's lines individually.
type Product struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	NameEN    string    `json:"name_en" gorm:"not null"`
	NameFR    string    `json:"name_fr" gorm:"not null"`
	Unit      string    `json:"unit" gorm:"not null"`
	Active    bool      `json:"active" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
