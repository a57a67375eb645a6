package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/NazarZnet/E-commerce/internal/domain"
)

// Predefined errors for store operations
var (
	ErrProductNotFound    = errors.New("store: product not found")
	ErrFilterStateSchema  = errors.New("store: filter state table is missing, run migrations")
	ErrEmptyFilterStateID = errors.New("store: filter state key must not be empty")
)

// PostgresStore implements CatalogReader using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const listCategoriesQuery = `
	SELECT id, name, slug, icon, created_at, updated_at
	FROM storefront.categories
	ORDER BY name ASC;
`

const listCharacteristicTypesQuery = `
	SELECT id, category_id, name, data_type, suffix
	FROM storefront.characteristic_types
	ORDER BY category_id ASC, id ASC;
`

// ListCategories retrieves every category and its characteristic schema.
func (s *PostgresStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, listCategoriesQuery)
	if err != nil {
		return nil, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	index := map[int64]int{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: ListCategories failed to scan category row: %w", err)
		}
		c.Characteristics = []domain.CharacteristicDefinition{}
		c.Products = []domain.Product{}
		index[c.ID] = len(categories)
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}
	if len(categories) == 0 {
		return categories, nil
	}

	defRows, err := s.db.QueryContext(ctx, listCharacteristicTypesQuery)
	if err != nil {
		return nil, fmt.Errorf("store: ListCategories failed to query characteristic types: %w", err)
	}
	defer defRows.Close()

	for defRows.Next() {
		var def domain.CharacteristicDefinition
		var categoryID int64
		if err := defRows.Scan(&def.ID, &categoryID, &def.Name, &def.DataType, &def.Suffix); err != nil {
			return nil, fmt.Errorf("store: ListCategories failed to scan characteristic type row: %w", err)
		}
		if !def.DataType.Valid() {
			// data_type is CHECK-constrained in the schema.
			log.Warn().Int64("characteristic_id", def.ID).Str("data_type", string(def.DataType)).Msg("skipping characteristic with unknown data type")
			continue
		}
		i, ok := index[categoryID]
		if !ok {
			continue
		}
		categories[i].Characteristics = append(categories[i].Characteristics, def)
	}
	if err = defRows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListCategories characteristic type iteration error: %w", err)
	}

	return categories, nil
}

const productColumns = `
	SELECT p.id, p.name, p.slug, p.description, p.price, p.discount_percentage, p.stock, p.is_featured,
		c.name, c.slug, r.avg_stars, p.created_at, p.updated_at
	FROM storefront.products p
	JOIN storefront.categories c ON c.id = p.category_id
	LEFT JOIN (
		SELECT product_id, AVG(stars)::float8 AS avg_stars
		FROM storefront.product_ratings
		GROUP BY product_id
	) r ON r.product_id = p.id
`

const listProductsQuery = productColumns + `
	ORDER BY p.created_at DESC, p.id DESC;
`

const getProductBySlugQuery = productColumns + `
	WHERE p.slug = $1;
`

const listProductCharacteristicsQuery = `
	SELECT pc.product_id, ct.name, pc.value, ct.suffix
	FROM storefront.product_characteristics pc
	JOIN storefront.characteristic_types ct ON ct.id = pc.characteristic_type_id
	ORDER BY pc.product_id ASC, pc.id ASC;
`

const getProductCharacteristicsQuery = `
	SELECT pc.product_id, ct.name, pc.value, ct.suffix
	FROM storefront.product_characteristics pc
	JOIN storefront.characteristic_types ct ON ct.id = pc.characteristic_type_id
	WHERE pc.product_id = $1
	ORDER BY pc.id ASC;
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var avgStars sql.NullFloat64
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.DiscountPercentage, &p.Stock, &p.IsFeatured,
		&p.Category.Name, &p.Category.Slug, &avgStars, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	if avgStars.Valid {
		v := avgStars.Float64
		p.AverageRating = &v
	}
	p.DiscountedPrice = domain.DiscountedPrice(p.Price, p.DiscountPercentage)
	p.Characteristics = []domain.CharacteristicValue{}
	return p, nil
}

// ListProducts retrieves every product with its category reference, rating and characteristics.
func (s *PostgresStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, listProductsQuery)
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	index := map[int64]int{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		index[p.ID] = len(products)
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}
	if len(products) == 0 {
		return products, nil
	}

	err = s.eachCharacteristic(ctx, listProductCharacteristicsQuery, nil, func(productID int64, cv domain.CharacteristicValue) {
		if i, ok := index[productID]; ok {
			products[i].Characteristics = append(products[i].Characteristics, cv)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts: %w", err)
	}
	return products, nil
}

// GetProductBySlug retrieves a single product by its slug.
func (s *PostgresStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, getProductBySlugQuery, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductBySlug failed to scan row: %w", err)
	}

	err = s.eachCharacteristic(ctx, getProductCharacteristicsQuery, []interface{}{p.ID}, func(_ int64, cv domain.CharacteristicValue) {
		p.Characteristics = append(p.Characteristics, cv)
	})
	if err != nil {
		return nil, fmt.Errorf("store: GetProductBySlug: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) eachCharacteristic(ctx context.Context, query string, args []interface{}, fn func(productID int64, cv domain.CharacteristicValue)) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query characteristics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var cv domain.CharacteristicValue
		if err := rows.Scan(&productID, &cv.Name, &cv.Value, &cv.Suffix); err != nil {
			return fmt.Errorf("failed to scan characteristic row: %w", err)
		}
		fn(productID, cv)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("characteristic iteration error: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		log.Info().Msg("closing database connection pool")
		err := s.db.Close()
		if err != nil {
			log.Error().Err(err).Msg("failed to close database connection pool")
			return err
		}
		log.Info().Msg("database connection pool closed")
		return nil
	}
	return nil
}
