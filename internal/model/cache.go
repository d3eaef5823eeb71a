package model

import "time"

type CacheEntry struct {
	ID        int64     `json:"id"`
	Slug      *string   `json:"slug"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
