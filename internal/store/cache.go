package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dukerupert/linkshelf/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type CacheStore struct {
	db *sql.DB
}

func NewCacheStore(db *sql.DB) *CacheStore {
	return &CacheStore{db: db}
}

func scanCache(scanner interface{ Scan(...any) error }) (*model.CacheEntry, error) {
	var c model.CacheEntry
	err := scanner.Scan(&c.ID, &c.Slug, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const cacheCols = `c.id, c.slug, c.content, c.created_at, c.updated_at`

const (
	groupCacheQuery = `SELECT ` + cacheCols + ` FROM group_caches gc JOIN caches c ON c.id = gc.cache_id WHERE gc.group_id = ?`
	linkCacheQuery  = `SELECT ` + cacheCols + ` FROM link_caches lc JOIN caches c ON c.id = lc.cache_id WHERE lc.link_id = ?`

	groupCacheUpsert = `INSERT INTO group_caches (group_id, cache_id) VALUES (?, ?)
		ON CONFLICT (group_id) DO UPDATE SET cache_id = excluded.cache_id`
	linkCacheUpsert = `INSERT INTO link_caches (link_id, cache_id) VALUES (?, ?)
		ON CONFLICT (link_id) DO UPDATE SET cache_id = excluded.cache_id`
)

// Create inserts a cache entry. A slug already in use fails with
// ErrConstraint; a nil slug never conflicts.
func (s *CacheStore) Create(ctx context.Context, slug *string, content string) (*model.CacheEntry, error) {
	return createCache(ctx, s.db, slug, content)
}

func createCache(ctx context.Context, q querier, slug *string, content string) (*model.CacheEntry, error) {
	result, err := q.ExecContext(ctx, `INSERT INTO caches (slug, content) VALUES (?, ?)`, slug, content)
	if err != nil {
		return nil, wrap("insert cache", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, wrap("last insert id", err)
	}
	return getCache(ctx, q, id)
}

func (s *CacheStore) GetByID(ctx context.Context, id int64) (*model.CacheEntry, error) {
	return getCache(ctx, s.db, id)
}

func getCache(ctx context.Context, q querier, id int64) (*model.CacheEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+cacheCols+` FROM caches c WHERE c.id = ?`, id)
	c, err := scanCache(row)
	if err != nil {
		return nil, wrap("get cache", err)
	}
	return c, nil
}

func (s *CacheStore) GetBySlug(ctx context.Context, slug string) (*model.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cacheCols+` FROM caches c WHERE c.slug = ?`, slug)
	c, err := scanCache(row)
	if err != nil {
		return nil, wrap("get cache by slug", err)
	}
	return c, nil
}

// UpdateContent rewrites the cached payload and stamps updated_at. This is
// the only write that moves updated_at.
func (s *CacheStore) UpdateContent(ctx context.Context, id int64, content string) (bool, error) {
	return updateCacheContent(ctx, s.db, id, content)
}

func updateCacheContent(ctx context.Context, q querier, id int64, content string) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE caches SET content = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		content, id,
	)
	if err != nil {
		return false, wrap("update cache content", err)
	}
	return affected("update cache content", res)
}

func (s *CacheStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM caches WHERE id = ?`, id)
	if err != nil {
		return false, wrap("delete cache", err)
	}
	return affected("delete cache", res)
}

// AssociateGroup points groupID at cacheID, replacing any earlier
// association for the group.
func (s *CacheStore) AssociateGroup(ctx context.Context, groupID, cacheID int64) error {
	return associate(ctx, s.db, "associate group cache",
		groupCacheUpsert,
		groupID, cacheID)
}

// AssociateLink points linkID at cacheID, replacing any earlier association
// for the link.
func (s *CacheStore) AssociateLink(ctx context.Context, linkID, cacheID int64) error {
	return associate(ctx, s.db, "associate link cache",
		linkCacheUpsert,
		linkID, cacheID)
}

func associate(ctx context.Context, q querier, op, query string, ownerID, cacheID int64) error {
	if _, err := q.ExecContext(ctx, query, ownerID, cacheID); err != nil {
		return wrap(op, err)
	}
	return nil
}

// GetGroupCache returns the entry associated with groupID, or ErrNotFound.
func (s *CacheStore) GetGroupCache(ctx context.Context, groupID int64) (*model.CacheEntry, error) {
	return ownerCache(ctx, s.db, "get group cache",
		groupCacheQuery,
		groupID)
}

// GetLinkCache returns the entry associated with linkID, or ErrNotFound.
func (s *CacheStore) GetLinkCache(ctx context.Context, linkID int64) (*model.CacheEntry, error) {
	return ownerCache(ctx, s.db, "get link cache",
		linkCacheQuery,
		linkID)
}

func ownerCache(ctx context.Context, q querier, op, query string, ownerID int64) (*model.CacheEntry, error) {
	c, err := scanCache(q.QueryRowContext(ctx, query, ownerID))
	if err != nil {
		return nil, wrap(op, err)
	}
	return c, nil
}

// WriteGroupCache stores content as the group's cache. The associated entry
// is rewritten in place when one exists; otherwise a new entry is created and
// associated. Both steps share one transaction.
func (s *CacheStore) WriteGroupCache(ctx context.Context, groupID int64, content string) (*model.CacheEntry, error) {
	return s.write(ctx, groupID, content,
		groupCacheQuery,
		groupCacheUpsert)
}

// WriteLinkCache is WriteGroupCache for a link.
func (s *CacheStore) WriteLinkCache(ctx context.Context, linkID int64, content string) (*model.CacheEntry, error) {
	return s.write(ctx, linkID, content,
		linkCacheQuery,
		linkCacheUpsert)
}

func (s *CacheStore) write(ctx context.Context, ownerID int64, content, lookup, upsert string) (*model.CacheEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap("begin cache write", err)
	}
	defer tx.Rollback()

	existing, err := ownerCache(ctx, tx, "lookup cache", lookup, ownerID)
	switch {
	case err == nil:
		if _, err := updateCacheContent(ctx, tx, existing.ID, content); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotFound):
		created, err := createCache(ctx, tx, nil, content)
		if err != nil {
			return nil, err
		}
		if err := associate(ctx, tx, "associate cache", upsert, ownerID, created.ID); err != nil {
			return nil, err
		}
		existing = created
	default:
		return nil, err
	}

	entry, err := getCache(ctx, tx, existing.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, wrap("commit cache write", err)
	}
	return entry, nil
}

// PruneOrphans deletes unnamed entries that no group or link points at.
// Replacing an association leaves the previous entry behind until this runs.
// Entries with a slug are kept so they can be associated later.
func (s *CacheStore) PruneOrphans(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM caches
		 WHERE slug IS NULL
		   AND id NOT IN (SELECT cache_id FROM group_caches)
		   AND id NOT IN (SELECT cache_id FROM link_caches)`)
	if err != nil {
		return 0, wrap("prune caches", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("prune caches rows affected", err)
	}
	return n, nil
}
