package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DataType is the declared type of a category characteristic.
type DataType string

const (
	DataTypeInteger DataType = "integer"
	DataTypeBoolean DataType = "boolean"
	DataTypeString  DataType = "string"
)

// Valid reports whether t is one of the supported characteristic types.
func (t DataType) Valid() bool {
	switch t {
	case DataTypeInteger, DataTypeBoolean, DataTypeString:
		return true
	}
	return false
}

// CharacteristicDefinition describes a typed attribute offered by a category (e.g. "Range" in km).
type CharacteristicDefinition struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	DataType DataType `json:"data_type"`
	Suffix   *string  `json:"suffix,omitempty"` // Unit shown next to the value, e.g. "km"
}

// CharacteristicValue is the raw value a product carries for a characteristic.
// Values are always stored as strings and interpreted by the definition's DataType.
type CharacteristicValue struct {
	Name   string  `json:"name"`
	Value  string  `json:"value"`
	Suffix *string `json:"suffix,omitempty"`
}

// CategoryRef is the short category reference embedded in product payloads.
type CategoryRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Category represents a product category together with its characteristic schema.
// Products is populated when the category is served as part of a catalog snapshot.
type Category struct {
	ID              int64                      `json:"id"`
	Name            string                     `json:"name"`
	Slug            string                     `json:"slug"`
	Icon            *string                    `json:"icon,omitempty"` // SVG markup
	Characteristics []CharacteristicDefinition `json:"characteristics"`
	Products        []Product                  `json:"products"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// Definition returns the characteristic definition with the given name.
func (c Category) Definition(name string) (CharacteristicDefinition, bool) {
	for _, def := range c.Characteristics {
		if def.Name == name {
			return def, true
		}
	}
	return CharacteristicDefinition{}, false
}

// Product represents a product in the storefront catalog.
// Prices use decimal.Decimal because the catalog API serializes them as strings ("1299.00").
type Product struct {
	ID                 int64                 `json:"id"`
	Name               string                `json:"name"`
	Slug               string                `json:"slug"`
	Description        string                `json:"description"`
	Price              decimal.Decimal       `json:"price"`
	DiscountPercentage decimal.Decimal       `json:"discount_percentage"`
	DiscountedPrice    decimal.Decimal       `json:"discounted_price"` // Never above Price
	AverageRating      *float64              `json:"average_rating"`   // nil when the product has no ratings yet
	Stock              int32                 `json:"stock"`
	Category           CategoryRef           `json:"category"`
	IsFeatured         bool                  `json:"is_featured"`
	Characteristics    []CharacteristicValue `json:"characteristics"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// Characteristic returns the product's value for the named characteristic.
func (p Product) Characteristic(name string) (CharacteristicValue, bool) {
	for _, cv := range p.Characteristics {
		if cv.Name == name {
			return cv, true
		}
	}
	return CharacteristicValue{}, false
}

var hundred = decimal.NewFromInt(100)

// DiscountedPrice returns price reduced by pct percent, rounded to cents.
// A non-positive percentage leaves the price unchanged; percentages above 100 are capped
// so the result never drops below zero.
func DiscountedPrice(price, pct decimal.Decimal) decimal.Decimal {
	if !pct.IsPositive() {
		return price
	}
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	discount := price.Mul(pct).Div(hundred)
	return price.Sub(discount).Round(2)
}
