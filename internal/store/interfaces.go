package store

import (
	"context"

	"github.com/NazarZnet/E-commerce/internal/domain"
)

// CatalogReader defines the read-side catalog operations the storefront needs.
type CatalogReader interface {
	// ListCategories returns every category with its characteristic definitions.
	// Products are not attached; the catalog snapshot does that.
	ListCategories(ctx context.Context) ([]domain.Category, error)
	// ListProducts returns every product with its characteristics, newest first.
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
}

// FilterStateStorer persists the filter state blob under a fixed key.
// LoadFilterState returns (nil, nil) when nothing has been saved yet.
type FilterStateStorer interface {
	LoadFilterState(ctx context.Context) ([]byte, error)
	SaveFilterState(ctx context.Context, blob []byte) error
}

var (
	_ CatalogReader     = (*PostgresStore)(nil)
	_ FilterStateStorer = (*PostgresFilterState)(nil)
	_ FilterStateStorer = (*RedisFilterState)(nil)
)
