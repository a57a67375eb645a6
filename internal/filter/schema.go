package filter

import (
	"math"
	"strconv"
	"strings"

	"github.com/NazarZnet/E-commerce/internal/domain"
)

// defaultRangeMax is the upper bound offered for an integer characteristic no product carries.
const defaultRangeMax = 100

// DeriveConstraints computes the characteristics map for a newly selected category.
//
// Existing constraints whose names the category still defines (with a matching kind) are
// kept as-is; every other definition gets its default. Keys the category does not define
// are dropped. A nil or unknown category yields an empty map.
func DeriveConstraints(selected *string, categories []domain.Category, current Constraints) Constraints {
	out := Constraints{}
	if selected == nil {
		return out
	}
	category, ok := findCategory(categories, *selected)
	if !ok {
		return out
	}
	for _, def := range category.Characteristics {
		if existing, ok := current[def.Name]; ok && existing != nil && existing.Kind() == def.DataType {
			out[def.Name] = existing.clone()
			continue
		}
		if con, ok := DefaultConstraint(def, categories); ok {
			out[def.Name] = con
		}
	}
	return out
}

// DefaultConstraint returns the least restrictive constraint for def, observed across every
// product of every category: integer → [0, max observed], boolean → false,
// string → all observed values. Unknown data types have no default.
func DefaultConstraint(def domain.CharacteristicDefinition, categories []domain.Category) (Constraint, bool) {
	switch def.DataType {
	case domain.DataTypeInteger:
		return Between(0, observedMax(def.Name, categories)), true
	case domain.DataTypeBoolean:
		return Flag{Value: false}, true
	case domain.DataTypeString:
		return OneOf{Values: observedValues(def.Name, categories)}, true
	}
	return nil, false
}

func findCategory(categories []domain.Category, name string) (domain.Category, bool) {
	for _, c := range categories {
		if c.Name == name {
			return c, true
		}
	}
	return domain.Category{}, false
}

// observedMax treats non-numeric values as 0.
func observedMax(name string, categories []domain.Category) float64 {
	highest, seen := 0.0, false
	forEachValue(name, categories, func(raw string) {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(v) {
			v = 0
		}
		if !seen || v > highest {
			highest, seen = v, true
		}
	})
	if !seen {
		return defaultRangeMax
	}
	return highest
}

func observedValues(name string, categories []domain.Category) StringSet {
	values := StringSet{}
	forEachValue(name, categories, values.Add)
	return values
}

func forEachValue(name string, categories []domain.Category, fn func(raw string)) {
	for _, c := range categories {
		for _, p := range c.Products {
			for _, cv := range p.Characteristics {
				if cv.Name == name {
					fn(cv.Value)
				}
			}
		}
	}
}
