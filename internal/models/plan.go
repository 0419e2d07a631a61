package models

import "time"

// Plan is a catalog entry. Price and name edits apply going forward only;
// enrollments snapshot both at creation time.
type Plan struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Price     float64   `db:"price" json:"price"`
	Duration  string    `db:"duration" json:"duration"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PlanFilter narrows catalog listings.
type PlanFilter struct {
	Active   *bool
	Page     int
	PageSize int
}
