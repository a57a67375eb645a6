// Package service implements the storefront use cases on top of the catalog
// snapshot and the shopper's filter state.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/NazarZnet/E-commerce/internal/catalog"
	"github.com/NazarZnet/E-commerce/internal/domain"
	"github.com/NazarZnet/E-commerce/internal/filter"
	"github.com/NazarZnet/E-commerce/internal/store"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidPage      = errors.New("invalid page")
	ErrInvalidOrdering  = errors.New("invalid ordering")
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
	DefaultOrdering = "-created_at"
)

// SnapshotSource provides the current catalog. *catalog.Cache satisfies it.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

// ProductLookup reads a single product from the backing store.
// *store.PostgresStore satisfies it.
type ProductLookup interface {
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
}

// Storefront wires the catalog and the filter store together.
type Storefront struct {
	source  SnapshotSource
	filters *filter.Store
	lookup  ProductLookup
}

func NewStorefront(source SnapshotSource, filters *filter.Store) *Storefront {
	return &Storefront{source: source, filters: filters}
}

// WithProductLookup makes GetProduct consult l for products missing from the
// snapshot, such as ones added since the last reload.
func (s *Storefront) WithProductLookup(l ProductLookup) *Storefront {
	s.lookup = l
	return s
}

// Categories returns every category with its products attached.
func (s *Storefront) Categories(ctx context.Context) ([]domain.Category, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return snap.Categories, nil
}

// Filters returns the current filter state.
func (s *Storefront) Filters() filter.FilterState {
	return s.filters.State()
}

// UpdateFilters merges patch into the filter state. When the patch sets a
// category, the characteristic constraints are re-derived for it; constraints
// sent in the same patch are applied first and kept when still valid.
func (s *Storefront) UpdateFilters(ctx context.Context, patch filter.Patch) (filter.FilterState, error) {
	if !patch.Category.Set {
		return s.filters.SetFilters(patch), nil
	}

	var categories []domain.Category
	if patch.Category.Value != nil {
		snap, err := s.source.Snapshot(ctx)
		if err != nil {
			return filter.FilterState{}, fmt.Errorf("failed to load catalog: %w", err)
		}
		categories = snap.Categories
	}

	state := s.filters.SetFiltersFunc(func(current filter.FilterState) filter.Patch {
		merged := current.Apply(patch)
		derived := filter.DeriveConstraints(merged.Category, categories, merged.Characteristics)
		patch.Characteristics = filter.Value(derived)
		return patch
	})
	log.Debug().Str("category", state.CategoryName()).Int("characteristics", len(state.Characteristics)).Msg("category selected")
	return state, nil
}

// SelectCategory sets the category (nil for all categories) and re-derives constraints.
func (s *Storefront) SelectCategory(ctx context.Context, name *string) (filter.FilterState, error) {
	p := filter.Patch{Category: filter.Null[string]()}
	if name != nil {
		p.Category = filter.Value(*name)
	}
	return s.UpdateFilters(ctx, p)
}

// ResetFilters restores the empty filter state.
func (s *Storefront) ResetFilters() filter.FilterState {
	return s.filters.ResetFilters()
}

// Schema describes the filters a category offers.
type Schema struct {
	Category        string                            `json:"category"`
	Characteristics []domain.CharacteristicDefinition `json:"characteristics"`
	Defaults        filter.Constraints                `json:"defaults"`
	Price           catalog.PriceRange                `json:"price"`
}

// Schema returns the characteristic definitions of category with their default
// constraints. An empty category uses the selected one; with none selected only
// the price range over the whole catalog is returned.
func (s *Storefront) Schema(ctx context.Context, category string) (*Schema, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if category == "" {
		category = s.filters.State().CategoryName()
	}
	if category == "" {
		return &Schema{
			Characteristics: []domain.CharacteristicDefinition{},
			Defaults:        filter.Constraints{},
			Price:           catalog.PricesOf(snap.Products),
		}, nil
	}

	c, ok := snap.Category(category)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, category)
	}
	name := c.Name
	defaults := filter.DeriveConstraints(&name, snap.Categories, nil)
	return &Schema{
		Category:        c.Name,
		Characteristics: c.Characteristics,
		Defaults:        defaults,
		Price:           catalog.PricesOf(c.Products),
	}, nil
}

// ProductQuery holds the listing options layered on top of the filter state.
type ProductQuery struct {
	Search       string
	Featured     *bool
	CategorySlug string
	Ordering     string
	Page         int
	PageSize     int
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Count       int              `json:"count"`
	TotalPages  int              `json:"total_pages"`
	CurrentPage int              `json:"current_page"`
	Results     []domain.Product `json:"results"`
}

// ListProducts evaluates the current filter state against the catalog and
// applies the query's search, flags, ordering and pagination.
func (s *Storefront) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	products := filter.Evaluate(snap.Products, s.filters.State())
	products = narrow(products, q)
	if err := orderProducts(products, q.Ordering); err != nil {
		return nil, err
	}
	return paginate(products, q.Page, q.PageSize)
}

// GetProduct returns a product by slug.
func (s *Storefront) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if p, ok := snap.Product(slug); ok {
		return &p, nil
	}
	if s.lookup == nil {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, slug)
	}
	p, err := s.lookup.GetProductBySlug(ctx, slug)
	if errors.Is(err, store.ErrProductNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}
	return p, nil
}

// SimilarProducts lists the other products of the same category.
func (s *Storefront) SimilarProducts(ctx context.Context, slug string, page, pageSize int) (*ProductPage, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	p, ok := snap.Product(slug)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, slug)
	}
	similar := make([]domain.Product, 0)
	for _, other := range snap.Products {
		if other.Category.Name == p.Category.Name && other.ID != p.ID {
			similar = append(similar, other)
		}
	}
	return paginate(similar, page, pageSize)
}

func narrow(products []domain.Product, q ProductQuery) []domain.Product {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	if search == "" && q.Featured == nil && q.CategorySlug == "" {
		return products
	}
	out := products[:0]
	for _, p := range products {
		if q.CategorySlug != "" && p.Category.Slug != q.CategorySlug {
			continue
		}
		if q.Featured != nil && p.IsFeatured != *q.Featured {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func orderProducts(products []domain.Product, ordering string) error {
	if ordering == "" {
		ordering = DefaultOrdering
	}
	field, desc := strings.TrimPrefix(ordering, "-"), strings.HasPrefix(ordering, "-")

	var less func(a, b domain.Product) bool
	switch field {
	case "price":
		less = func(a, b domain.Product) bool { return a.Price.LessThan(b.Price) }
	case "created_at":
		less = func(a, b domain.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updated_at":
		less = func(a, b domain.Product) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrdering, ordering)
	}

	sort.SliceStable(products, func(i, j int) bool {
		if desc {
			return less(products[j], products[i])
		}
		return less(products[i], products[j])
	})
	return nil
}

func paginate(products []domain.Product, page, pageSize int) (*ProductPage, error) {
	if page == 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	count := len(products)
	totalPages := (count + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > count {
		end = count
	}
	results := make([]domain.Product, end-start)
	copy(results, products[start:end])
	return &ProductPage{Count: count, TotalPages: totalPages, CurrentPage: page, Results: results}, nil
}
