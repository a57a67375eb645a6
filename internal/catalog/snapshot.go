// Package catalog keeps an immutable in-memory snapshot of the storefront
// catalog (categories with their products) and refreshes it periodically.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/NazarZnet/E-commerce/internal/domain"
)

// Loader fetches the raw catalog. store.PostgresStore satisfies it.
type Loader interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// Snapshot is a point-in-time view of the catalog. It must be treated as read-only.
type Snapshot struct {
	Categories []domain.Category
	Products   []domain.Product
	LoadedAt   time.Time
}

// NewSnapshot attaches each product to the category with the same name.
// Products whose category is unknown stay in Products only.
func NewSnapshot(categories []domain.Category, products []domain.Product, loadedAt time.Time) *Snapshot {
	cats := make([]domain.Category, len(categories))
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		c.Products = []domain.Product{}
		if c.Characteristics == nil {
			c.Characteristics = []domain.CharacteristicDefinition{}
		}
		cats[i] = c
		index[c.Name] = i
	}
	for _, p := range products {
		if i, ok := index[p.Category.Name]; ok {
			cats[i].Products = append(cats[i].Products, p)
		}
	}
	if products == nil {
		products = []domain.Product{}
	}
	return &Snapshot{Categories: cats, Products: products, LoadedAt: loadedAt}
}

// Category returns the category with the given name.
func (s *Snapshot) Category(name string) (domain.Category, bool) {
	for _, c := range s.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return domain.Category{}, false
}

// Product returns the product with the given slug.
func (s *Snapshot) Product(slug string) (domain.Product, bool) {
	for _, p := range s.Products {
		if p.Slug == slug {
			return p, true
		}
	}
	return domain.Product{}, false
}

// PriceRange summarizes catalog prices for the price slider.
type PriceRange struct {
	Min          decimal.Decimal `json:"min"`            // lowest discounted price
	Max          decimal.Decimal `json:"max"`            // highest discounted price
	MaxListPrice decimal.Decimal `json:"max_list_price"` // highest undiscounted price
}

// PricesOf computes price bounds over products. All zero for an empty list.
func PricesOf(products []domain.Product) PriceRange {
	var r PriceRange
	for i, p := range products {
		if i == 0 || p.DiscountedPrice.LessThan(r.Min) {
			r.Min = p.DiscountedPrice
		}
		if i == 0 || p.DiscountedPrice.GreaterThan(r.Max) {
			r.Max = p.DiscountedPrice
		}
		if i == 0 || p.Price.GreaterThan(r.MaxListPrice) {
			r.MaxListPrice = p.Price
		}
	}
	return r
}

const reloadTimeout = 30 * time.Second

// Cache serves the latest Snapshot and reloads it after ttl.
// Concurrent reloads share one Loader call. If a reload fails while an older
// snapshot exists, the older snapshot keeps being served.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	snap  *Snapshot
	group singleflight.Group
}

// NewCache creates a cache. A zero ttl reloads on every call.
func NewCache(loader Loader, ttl time.Duration) *Cache {
	return &Cache{loader: loader, ttl: ttl, now: time.Now}
}

// Snapshot returns a fresh-enough catalog snapshot.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil && c.ttl > 0 && c.now().Sub(snap.LoadedAt) < c.ttl {
		return snap, nil
	}

	// The reload is shared by every waiting caller, so it must outlive the first one.
	v, err, _ := c.group.Do("catalog", func() (interface{}, error) {
		reloadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reloadTimeout)
		defer cancel()
		return c.reload(reloadCtx)
	})
	if err != nil {
		if snap != nil {
			log.Warn().Err(err).Time("loaded_at", snap.LoadedAt).Msg("catalog reload failed, serving stale snapshot")
			return snap, nil
		}
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate forces the next Snapshot call to reload.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

func (c *Cache) reload(ctx context.Context) (*Snapshot, error) {
	categories, err := c.loader.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load categories: %w", err)
	}
	products, err := c.loader.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load products: %w", err)
	}
	snap := NewSnapshot(categories, products, c.now())

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	log.Debug().Int("categories", len(snap.Categories)).Int("products", len(snap.Products)).Msg("catalog snapshot loaded")
	return snap, nil
}
