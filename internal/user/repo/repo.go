// Package repo persists identities. PostgresRepo keeps the sqlx users table;
// LevelRepo stores the same rows in goleveldb with a username index.
package repo

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
)

// Repository is the identity row store. Usernames are unique and compared
// case-sensitively. Missing rows yield apperr.ErrNotFound, a taken username
// apperr.ErrAlreadyExists, and driver failures apperr.ErrStoreUnavailable.
type Repository interface {
	EnsureTable(ctx context.Context) error
	Create(ctx context.Context, u *entity.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	// Update writes username, role and password columns of u.ID.
	Update(ctx context.Context, u *entity.User) error
	UpdatePassword(ctx context.Context, id int64, hash, algo string) error
	Delete(ctx context.Context, id int64) error
	CountByRole(ctx context.Context, role entity.Role) (int, error)
}
