package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository is a thin generic store for entities without bespoke query
// needs. Components with locking or aggregate queries keep their own
// repository implementations.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T) ([]*T, error)
	FindOne(ctx context.Context, query *T) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID int64, resource any) error
	Count(ctx context.Context, query *T) (int64, error)
}
