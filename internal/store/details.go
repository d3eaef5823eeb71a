package store

import (
	"context"
	"errors"

	"github.com/dukerupert/linkshelf/internal/model"
)

// Details assembles a group, its links joined with their cache content, and
// the group's own cache entry. Only a missing group is an error: a failed or
// empty cache lookup leaves the cache fields nil.
func (s *GroupStore) Details(ctx context.Context, id int64) (*model.GroupDetails, error) {
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	links, err := s.linksWithCache(ctx, id)
	if err != nil {
		s.logger.Warn("group details: link cache join failed", "group_id", id, "error", err)
		links, err = s.linksWithoutCache(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	d := &model.GroupDetails{Group: g, Links: links}

	cache, err := ownerCache(ctx, s.db, "get group cache", groupCacheQuery, id)
	switch {
	case err == nil:
		d.Cache = cache
	case errors.Is(err, ErrNotFound):
	default:
		s.logger.Warn("group details: cache lookup failed", "group_id", id, "error", err)
	}

	return d, nil
}

func (s *GroupStore) linksWithCache(ctx context.Context, groupID int64) ([]model.LinkWithCache, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.id, l.group_id, lc.cache_id, l.type, l.url, l.name, l.content, l.created_at,
		        c.content, c.updated_at
		 FROM links l
		 LEFT JOIN link_caches lc ON lc.link_id = l.id
		 LEFT JOIN caches c ON c.id = lc.cache_id
		 WHERE l.group_id = ?
		 ORDER BY l.id`, groupID)
	if err != nil {
		return nil, wrap("list links with cache", err)
	}
	defer rows.Close()

	links := []model.LinkWithCache{}
	for rows.Next() {
		var lw model.LinkWithCache
		l := &lw.Link
		if err := rows.Scan(&l.ID, &l.GroupID, &l.CacheID, &l.Type, &l.URL, &l.Name, &l.Content, &l.CreatedAt,
			&lw.CacheContent, &lw.CacheUpdatedAt); err != nil {
			return nil, wrap("scan link with cache", err)
		}
		links = append(links, lw)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list links with cache", err)
	}
	return links, nil
}

func (s *GroupStore) linksWithoutCache(ctx context.Context, groupID int64) ([]model.LinkWithCache, error) {
	plain, err := NewLinkStore(s.db).list(ctx, "list links",
		`SELECT id, group_id, NULL, type, url, name, content, created_at
		 FROM links WHERE group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, err
	}
	links := make([]model.LinkWithCache, 0, len(plain))
	for _, l := range plain {
		links = append(links, model.LinkWithCache{Link: l})
	}
	return links, nil
}
