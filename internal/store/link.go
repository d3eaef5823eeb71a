package store

import (
	"context"
	"database/sql"

	"github.com/dukerupert/linkshelf/internal/model"
)

type LinkStore struct {
	db *sql.DB
}

func NewLinkStore(db *sql.DB) *LinkStore {
	return &LinkStore{db: db}
}

// LinkParams holds the mutable fields of a link.
type LinkParams struct {
	Type    string
	URL     string
	Name    *string
	Content *string
}

func (p LinkParams) linkType() string {
	if p.Type == "" {
		return model.LinkTypeLink
	}
	return p.Type
}

func scanLink(scanner interface{ Scan(...any) error }) (*model.Link, error) {
	var l model.Link
	err := scanner.Scan(&l.ID, &l.GroupID, &l.CacheID, &l.Type, &l.URL, &l.Name, &l.Content, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const linkSelect = `SELECT l.id, l.group_id, lc.cache_id, l.type, l.url, l.name, l.content, l.created_at
	FROM links l
	LEFT JOIN link_caches lc ON lc.link_id = l.id`

// Create inserts a link into groupID. An unknown group fails with
// ErrConstraint.
func (s *LinkStore) Create(ctx context.Context, groupID int64, p LinkParams) (*model.Link, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO links (group_id, type, url, name, content) VALUES (?, ?, ?, ?, ?)`,
		groupID, p.linkType(), p.URL, p.Name, p.Content,
	)
	if err != nil {
		return nil, wrap("insert link", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, wrap("last insert id", err)
	}
	return s.GetByID(ctx, id)
}

func (s *LinkStore) GetByID(ctx context.Context, id int64) (*model.Link, error) {
	row := s.db.QueryRowContext(ctx, linkSelect+` WHERE l.id = ?`, id)
	l, err := scanLink(row)
	if err != nil {
		return nil, wrap("get link", err)
	}
	return l, nil
}

func (s *LinkStore) ListByGroup(ctx context.Context, groupID int64) ([]model.Link, error) {
	return s.list(ctx, "list links", linkSelect+` WHERE l.group_id = ? ORDER BY l.id`, groupID)
}

// ListPublic returns every link that belongs to a public group.
func (s *LinkStore) ListPublic(ctx context.Context) ([]model.Link, error) {
	return s.list(ctx, "list public links",
		linkSelect+` JOIN link_groups g ON g.id = l.group_id WHERE g.is_public = 1 ORDER BY l.id`)
}

// ListStaleMarkdown returns markdown links whose cache entry is missing or
// older than the owning group's refresh interval.
func (s *LinkStore) ListStaleMarkdown(ctx context.Context) ([]model.Link, error) {
	return s.list(ctx, "list stale markdown links",
		linkSelect+`
		 JOIN link_groups g ON g.id = l.group_id
		 LEFT JOIN caches c ON c.id = lc.cache_id
		 WHERE l.type = 'markdown'
		   AND (c.id IS NULL OR c.updated_at <= datetime('now', '-' || g.refresh_interval || ' seconds'))
		 ORDER BY l.id`)
}

func (s *LinkStore) list(ctx context.Context, op, query string, args ...any) ([]model.Link, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var links []model.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, wrap("scan link", err)
		}
		links = append(links, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return links, nil
}

// Update replaces every mutable field. It reports false when no link has the
// given id.
func (s *LinkStore) Update(ctx context.Context, id int64, p LinkParams) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE links SET type = ?, url = ?, name = ?, content = ? WHERE id = ?`,
		p.linkType(), p.URL, p.Name, p.Content, id,
	)
	if err != nil {
		return false, wrap("update link", err)
	}
	return affected("update link", res)
}

func (s *LinkStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return false, wrap("delete link", err)
	}
	return affected("delete link", res)
}
