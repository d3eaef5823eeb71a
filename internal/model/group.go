package model

import "time"

// DefaultRefreshInterval is the cache refresh interval, in seconds, given to
// groups created without one.
const DefaultRefreshInterval = 3600

type LinkGroup struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	AccessKey       *string   `json:"key,omitempty"`
	Description     *string   `json:"description"`
	IsPublic        bool      `json:"is_public"`
	RefreshInterval int       `json:"refresh_interval"`
	CreatedAt       time.Time `json:"created_at"`
}

// RefreshEvery returns the refresh interval as a duration.
func (g *LinkGroup) RefreshEvery() time.Duration {
	return time.Duration(g.RefreshInterval) * time.Second
}

// GroupDetails is a group with its links and its own cache entry, if any.
type GroupDetails struct {
	Group *LinkGroup      `json:"group"`
	Links []LinkWithCache `json:"links"`
	Cache *CacheEntry     `json:"cache"`
}
