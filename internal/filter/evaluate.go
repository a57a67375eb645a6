package filter

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/NazarZnet/E-commerce/internal/domain"
)

// Evaluate returns the products that satisfy every active criterion of state,
// in their original order. It never fails: products with missing or malformed
// data are excluded.
func Evaluate(products []domain.Product, state FilterState) []domain.Product {
	m := newMatcher(state)
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if m.match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Matches reports whether a single product passes state.
func Matches(p domain.Product, state FilterState) bool {
	return newMatcher(state).match(p)
}

type matcher struct {
	state    FilterState
	minPrice *decimal.Decimal
	maxPrice *decimal.Decimal
	none     bool
}

func newMatcher(state FilterState) matcher {
	m := matcher{state: state}
	if state.MinPrice != nil {
		switch v := *state.MinPrice; {
		case math.IsInf(v, -1):
		case math.IsNaN(v), math.IsInf(v, 1):
			m.none = true
		default:
			d := decimal.NewFromFloat(v)
			m.minPrice = &d
		}
	}
	if state.MaxPrice != nil {
		switch v := *state.MaxPrice; {
		case math.IsInf(v, 1):
		case math.IsNaN(v), math.IsInf(v, -1):
			m.none = true
		default:
			d := decimal.NewFromFloat(v)
			m.maxPrice = &d
		}
	}
	return m
}

func (m matcher) match(p domain.Product) bool {
	if m.none {
		return false
	}
	if m.state.Category != nil && p.Category.Name != *m.state.Category {
		return false
	}
	if m.minPrice != nil && p.DiscountedPrice.LessThan(*m.minPrice) {
		return false
	}
	if m.maxPrice != nil && p.DiscountedPrice.GreaterThan(*m.maxPrice) {
		return false
	}
	for name, con := range m.state.Characteristics {
		cv, ok := p.Characteristic(name)
		if !ok {
			return false
		}
		if !satisfies(cv.Value, con) {
			return false
		}
	}
	return true
}

func satisfies(raw string, con Constraint) bool {
	switch c := con.(type) {
	case Flag:
		return ParseBool(raw) == c.Value
	case Range:
		v := ParseNumber(raw)
		lo, hi := math.Inf(-1), math.Inf(1)
		if c.Min != nil {
			lo = *c.Min
		}
		if c.Max != nil {
			hi = *c.Max
		}
		return v >= lo && v <= hi
	case OneOf:
		return c.Values.Has(raw)
	}
	return false
}

// ParseBool interprets a stored characteristic value: only "true" in any letter case is true.
func ParseBool(raw string) bool {
	return strings.EqualFold(raw, "true")
}

// ParseNumber interprets a stored characteristic value as a number, NaN when it is not one.
// An empty value is NaN too, unlike the storefront UI this replaces, which read it as 0.
func ParseNumber(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
