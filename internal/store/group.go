package store

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/dukerupert/linkshelf/internal/model"
)

type GroupStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewGroupStore returns a GroupStore. logger receives the warnings from
// degraded composite reads; nil uses slog.Default.
func NewGroupStore(db *sql.DB, logger *slog.Logger) *GroupStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupStore{db: db, logger: logger}
}

// GroupParams holds the mutable fields of a link group.
type GroupParams struct {
	Name            string
	Slug            string
	AccessKey       *string
	Description     *string
	IsPublic        bool
	RefreshInterval int
}

func (p GroupParams) refreshInterval() int {
	if p.RefreshInterval <= 0 {
		return model.DefaultRefreshInterval
	}
	return p.RefreshInterval
}

func scanGroup(scanner interface{ Scan(...any) error }) (*model.LinkGroup, error) {
	var g model.LinkGroup
	err := scanner.Scan(&g.ID, &g.UserID, &g.Name, &g.Slug, &g.AccessKey, &g.Description,
		&g.IsPublic, &g.RefreshInterval, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

const groupCols = `id, user_id, name, slug, key, description, is_public, refresh_interval, created_at`

// Create inserts a group owned by userID. A taken slug fails with
// ErrConstraint, as does an unknown owner.
func (s *GroupStore) Create(ctx context.Context, userID int64, p GroupParams) (*model.LinkGroup, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO link_groups (user_id, name, slug, key, description, is_public, refresh_interval)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, p.Name, p.Slug, p.AccessKey, p.Description, p.IsPublic, p.refreshInterval(),
	)
	if err != nil {
		return nil, wrap("insert group", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, wrap("last insert id", err)
	}
	return s.GetByID(ctx, id)
}

func (s *GroupStore) GetByID(ctx context.Context, id int64) (*model.LinkGroup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM link_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err != nil {
		return nil, wrap("get group", err)
	}
	return g, nil
}

func (s *GroupStore) GetBySlug(ctx context.Context, slug string) (*model.LinkGroup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM link_groups WHERE slug = ?`, slug)
	g, err := scanGroup(row)
	if err != nil {
		return nil, wrap("get group by slug", err)
	}
	return g, nil
}

func (s *GroupStore) ListByUser(ctx context.Context, userID int64) ([]model.LinkGroup, error) {
	return s.list(ctx, "list groups",
		`SELECT `+groupCols+` FROM link_groups WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

func (s *GroupStore) ListPublic(ctx context.Context) ([]model.LinkGroup, error) {
	return s.list(ctx, "list public groups",
		`SELECT `+groupCols+` FROM link_groups WHERE is_public = 1 ORDER BY created_at DESC, id DESC`)
}

// ListStale returns groups with no cache entry or whose cache entry is older
// than the group's refresh interval.
func (s *GroupStore) ListStale(ctx context.Context) ([]model.LinkGroup, error) {
	return s.list(ctx, "list stale groups",
		`SELECT g.id, g.user_id, g.name, g.slug, g.key, g.description, g.is_public, g.refresh_interval, g.created_at
		 FROM link_groups g
		 LEFT JOIN group_caches gc ON gc.group_id = g.id
		 LEFT JOIN caches c ON c.id = gc.cache_id
		 WHERE c.id IS NULL
		    OR c.updated_at <= datetime('now', '-' || g.refresh_interval || ' seconds')
		 ORDER BY g.id`)
}

func (s *GroupStore) list(ctx context.Context, op, query string, args ...any) ([]model.LinkGroup, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var groups []model.LinkGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, wrap("scan group", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return groups, nil
}

// Update replaces every mutable field. It reports false when no group has
// the given id; a slug owned by another group fails with ErrConstraint.
func (s *GroupStore) Update(ctx context.Context, id int64, p GroupParams) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE link_groups
		 SET name = ?, slug = ?, key = ?, description = ?, is_public = ?, refresh_interval = ?
		 WHERE id = ?`,
		p.Name, p.Slug, p.AccessKey, p.Description, p.IsPublic, p.refreshInterval(), id,
	)
	if err != nil {
		return false, wrap("update group", err)
	}
	return affected("update group", res)
}

func (s *GroupStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM link_groups WHERE id = ?`, id)
	if err != nil {
		return false, wrap("delete group", err)
	}
	return affected("delete group", res)
}
