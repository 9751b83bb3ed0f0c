package models

import "time"

// SearchRecord is one settled search kept for the history endpoint.
type SearchRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SessionID    string    `gorm:"index" json:"session_id"`
	Postcode     string    `gorm:"index" json:"postcode"`
	Locality     string    `json:"locality"`
	Status       string    `json:"status"`
	ListingCount int       `json:"listing_count"`
	GrowthPct    string    `json:"growth_pct"`
	SearchedAt   time.Time `gorm:"index" json:"searched_at"`
}
