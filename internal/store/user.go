package store

import (
	"context"
	"database/sql"

	"github.com/dukerupert/linkshelf/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, username, password_hash, created_at`

// Create inserts a user. A taken username fails with ErrConstraint.
func (s *UserStore) Create(ctx context.Context, username, passwordHash string) (*model.User, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash,
	)
	if err != nil {
		return nil, wrap("insert user", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, wrap("last insert id", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, wrap("get user", err)
	}
	return u, nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		return nil, wrap("get user by username", err)
	}
	return u, nil
}

// UpdatePassword replaces the stored hash. It reports false when no user has
// the given id.
func (s *UserStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return false, wrap("update password", err)
	}
	return affected("update password", res)
}

// Delete removes a user. Owned groups, links and their cache associations go
// with it through ON DELETE CASCADE.
func (s *UserStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, wrap("delete user", err)
	}
	return affected("delete user", res)
}
