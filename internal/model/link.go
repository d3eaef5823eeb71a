package model

import "time"

const (
	LinkTypeLink     = "link"
	LinkTypeMarkdown = "markdown"
	LinkTypeFeed     = "feed"
)

var LinkTypes = map[string]bool{
	LinkTypeLink:     true,
	LinkTypeMarkdown: true,
	LinkTypeFeed:     true,
}

type Link struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	CacheID   *int64    `json:"cache_id"`
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	Name      *string   `json:"name"`
	Content   *string   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// LinkWithCache is a link joined with the content of its associated cache
// entry. CacheContent and CacheUpdatedAt are nil when there is no association.
type LinkWithCache struct {
	Link
	CacheContent   *string    `json:"cache_content"`
	CacheUpdatedAt *time.Time `json:"cache_updated_at"`
}
