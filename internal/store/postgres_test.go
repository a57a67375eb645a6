package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NazarZnet/E-commerce/internal/domain"
)

// Helper function to create a mock DB and PostgresStore for testing
func newMockDBAndStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	store := NewPostgresStore(db)
	require.NotNil(t, store, "Store should not be nil")

	return db, mock, store
}

func PtrTo[T any](v T) *T {
	return &v
}

var (
	categoryColumns       = []string{"id", "name", "slug", "icon", "created_at", "updated_at"}
	characteristicColumns = []string{"id", "category_id", "name", "data_type", "suffix"}
	productColumnNames    = []string{"id", "name", "slug", "description", "price", "discount_percentage", "stock", "is_featured", "category_name", "category_slug", "avg_stars", "created_at", "updated_at"}
	productCharColumns    = []string{"product_id", "name", "value", "suffix"}
)

func TestPostgresStore_ListCategories(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM storefront.categories ORDER BY name ASC`)).
		WillReturnRows(sqlmock.NewRows(categoryColumns).
			AddRow(2, "Bikes", "bikes", nil, now, now).
			AddRow(1, "Scooters", "scooters", "<svg/>", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM storefront.characteristic_types`)).
		WillReturnRows(sqlmock.NewRows(characteristicColumns).
			AddRow(10, 1, "Range", "integer", "km").
			AddRow(11, 1, "Foldable", "boolean", nil).
			AddRow(12, 2, "Motor", "string", nil).
			AddRow(13, 2, "Legacy", "float", nil).
			AddRow(14, 99, "Orphan", "string", nil))

	categories, err := store.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 2)

	assert.Equal(t, "Bikes", categories[0].Name)
	assert.Nil(t, categories[0].Icon)
	require.Len(t, categories[0].Characteristics, 1, "unknown data types are skipped")
	assert.Equal(t, "Motor", categories[0].Characteristics[0].Name)
	assert.NotNil(t, categories[0].Products)

	assert.Equal(t, "Scooters", categories[1].Name)
	require.NotNil(t, categories[1].Icon)
	require.Len(t, categories[1].Characteristics, 2)
	assert.Equal(t, domain.CharacteristicDefinition{ID: 10, Name: "Range", DataType: domain.DataTypeInteger, Suffix: PtrTo("km")}, categories[1].Characteristics[0])
	assert.Equal(t, domain.DataTypeBoolean, categories[1].Characteristics[1].DataType)

	require.NoError(t, mock.ExpectationsWereMet(), "SQLmock expectations were not met")
}

func TestPostgresStore_ListCategories_Empty(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM storefront.categories`)).
		WillReturnRows(sqlmock.NewRows(categoryColumns))

	categories, err := store.ListCategories(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, categories)
	assert.Empty(t, categories)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCategories_QueryError(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	dbErr := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM storefront.categories`)).WillReturnError(dbErr)

	categories, err := store.ListCategories(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dbErr))
	assert.Nil(t, categories)
}

func TestPostgresStore_ListProducts(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM storefront.products p`)).
		WillReturnRows(sqlmock.NewRows(productColumnNames).
			AddRow(2, "City Bike", "city-bike", "Commuter", "900.00", "10.00", 3, false, "Bikes", "bikes", nil, now, now).
			AddRow(1, "Kick Pro", "kick-pro", "Scooter", "500.00", "0.00", 7, true, "Scooters", "scooters", 4.5, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM storefront.product_characteristics pc`)).
		WillReturnRows(sqlmock.NewRows(productCharColumns).
			AddRow(1, "Range", "40", "km").
			AddRow(1, "Foldable", "true", nil).
			AddRow(2, "Range", "25", "km").
			AddRow(404, "Range", "1", nil))

	products, err := store.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	bike := products[0]
	assert.Equal(t, int64(2), bike.ID)
	assert.Equal(t, domain.CategoryRef{Name: "Bikes", Slug: "bikes"}, bike.Category)
	assert.True(t, bike.Price.Equal(decimal.NewFromInt(900)))
	assert.True(t, bike.DiscountedPrice.Equal(decimal.NewFromInt(810)), "discounted price is derived from the percentage")
	assert.Nil(t, bike.AverageRating)
	assert.Equal(t, []domain.CharacteristicValue{{Name: "Range", Value: "25", Suffix: PtrTo("km")}}, bike.Characteristics)

	scooter := products[1]
	assert.True(t, scooter.IsFeatured)
	assert.True(t, scooter.DiscountedPrice.Equal(scooter.Price))
	require.NotNil(t, scooter.AverageRating)
	assert.Equal(t, 4.5, *scooter.AverageRating)
	require.Len(t, scooter.Characteristics, 2)
	assert.Equal(t, "Foldable", scooter.Characteristics[1].Name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductBySlug_Found(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE p.slug = $1`)).
		WithArgs("kick-pro").
		WillReturnRows(sqlmock.NewRows(productColumnNames).
			AddRow(1, "Kick Pro", "kick-pro", "Scooter", "500.00", "20", 7, true, "Scooters", "scooters", nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE pc.product_id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(productCharColumns).AddRow(1, "Range", "40", "km"))

	product, err := store.GetProductBySlug(context.Background(), "kick-pro")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "kick-pro", product.Slug)
	assert.True(t, product.DiscountedPrice.Equal(decimal.NewFromInt(400)))
	require.Len(t, product.Characteristics, 1)
	assert.Equal(t, "40", product.Characteristics[0].Value)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductBySlug_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE p.slug = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	product, err := store.GetProductBySlug(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound), "Error should be ErrProductNotFound")
	assert.Nil(t, product)
	require.NoError(t, mock.ExpectationsWereMet())
}
