// Package repo persists assessment records. Two adapters share one contract:
// PostgresRepo (sqlx + lib/pq) and LevelRepo (embedded goleveldb).
package repo

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
)

// Repository is the row store boundary for assessments. Implementations
// return apperr.ErrNotFound for missing ids and wrap driver failures with
// apperr.ErrStoreUnavailable.
type Repository interface {
	EnsureTable(ctx context.Context) error
	// Create stores a and returns the id the store assigned to it.
	Create(ctx context.Context, a *entity.Assessment) (int64, error)
	// Update replaces every column of the row with a.ID.
	Update(ctx context.Context, a *entity.Assessment) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*entity.Assessment, error)
	// List returns every record in store order.
	List(ctx context.Context) ([]*entity.Assessment, error)
	// FindByNameAndDate returns the first record matching both predicates.
	FindByNameAndDate(ctx context.Context, name string, date entity.Date) (*entity.Assessment, error)
}
