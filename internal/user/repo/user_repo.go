package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
)

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, password_hash, password_algo, role, created_at, updated_at`

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  password_algo TEXT NOT NULL DEFAULT 'sha256',
  role TEXT NOT NULL DEFAULT 'user',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return apperr.Unavailable("ensure users table", err)
	}
	return nil
}

// Create inserts a new user row. Returns new ID.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (int64, error) {
	const q = `INSERT INTO users (username, password_hash, password_algo, role)
		VALUES (:username, :password_hash, :password_algo, :role) RETURNING id, created_at, updated_at`
	rows, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		return 0, mapWriteErr("insert user", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, mapWriteErr("insert user", err)
		}
		return 0, apperr.Unavailable("insert user", errors.New("no id returned"))
	}
	if err := rows.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return 0, apperr.Unavailable("insert user", err)
	}
	return u.ID, nil
}

// GetByUsername fetches by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	var row entity.User
	if err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE username=$1`, username); err != nil {
		return nil, mapGetErr("get user", err)
	}
	return &row, nil
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var row entity.User
	if err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id=$1`, id); err != nil {
		return nil, mapGetErr("get user", err)
	}
	return &row, nil
}

func (r *UserRepo) List(ctx context.Context) ([]*entity.User, error) {
	var rows []*entity.User
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, apperr.Unavailable("list users", err)
	}
	return rows, nil
}

// Update rewrites the mutable columns of an existing row.
func (r *UserRepo) Update(ctx context.Context, u *entity.User) error {
	const q = `UPDATE users SET username=:username, password_hash=:password_hash, password_algo=:password_algo,
		role=:role, updated_at=NOW() WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, u)
	if err != nil {
		return mapWriteErr("update user", err)
	}
	return affectedOne(res, "update user")
}

// UpdatePassword updates password hash & algo.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash, algo string) error {
	const q = `UPDATE users SET password_hash=$2, password_algo=$3, updated_at=NOW() WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, hash, algo)
	if err != nil {
		return apperr.Unavailable("update password", err)
	}
	return affectedOne(res, "update password")
}

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return apperr.Unavailable("delete user", err)
	}
	return affectedOne(res, "delete user")
}

func (r *UserRepo) CountByRole(ctx context.Context, role entity.Role) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE role=$1`, role); err != nil {
		return 0, apperr.Unavailable("count users", err)
	}
	return n, nil
}

// uniqueViolation is the Postgres SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

func mapWriteErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperr.ErrAlreadyExists
	}
	return apperr.Unavailable(op, err)
}

func mapGetErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return apperr.Unavailable(op, err)
}

func affectedOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
