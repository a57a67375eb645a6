// Package filter implements the storefront product filter engine: typed
// characteristic constraints, the persisted filter state and its store,
// default-constraint derivation from a category schema, and the evaluator
// that narrows a product list.
package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/NazarZnet/E-commerce/internal/domain"
)

// setSeparator joins string-set members at the persistence boundary.
const setSeparator = ","

// ErrInvalidConstraint is returned when a persisted constraint has an unknown shape.
var ErrInvalidConstraint = errors.New("filter: invalid constraint")

// Constraint is a user-chosen restriction on one characteristic.
// It is a closed union of Range, Flag and OneOf.
type Constraint interface {
	// Kind is the characteristic data type the constraint applies to.
	Kind() domain.DataType
	clone() Constraint
}

// Range restricts an integer characteristic to [Min, Max]. A nil bound is unbounded.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Flag requires a boolean characteristic to equal Value.
type Flag struct {
	Value bool
}

// OneOf requires a string characteristic to be one of Values.
// An empty set matches nothing.
type OneOf struct {
	Values StringSet
}

func (Range) Kind() domain.DataType { return domain.DataTypeInteger }
func (Flag) Kind() domain.DataType  { return domain.DataTypeBoolean }
func (OneOf) Kind() domain.DataType { return domain.DataTypeString }

func (r Range) clone() Constraint {
	out := Range{}
	if r.Min != nil {
		v := *r.Min
		out.Min = &v
	}
	if r.Max != nil {
		v := *r.Max
		out.Max = &v
	}
	return out
}

func (f Flag) clone() Constraint  { return f }
func (o OneOf) clone() Constraint { return OneOf{Values: o.Values.Clone()} }

// Between is a convenience constructor for a closed Range.
func Between(min, max float64) Range {
	return Range{Min: &min, Max: &max}
}

// In is a convenience constructor for a OneOf constraint.
func In(values ...string) OneOf {
	return OneOf{Values: NewStringSet(values...)}
}

// StringSet is an unordered set of literal characteristic values.
type StringSet map[string]struct{}

// NewStringSet builds a set from values, dropping duplicates.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// ParseStringSet splits a comma-joined list. The empty string yields the empty set.
func ParseStringSet(joined string) StringSet {
	if joined == "" {
		return StringSet{}
	}
	return NewStringSet(strings.Split(joined, setSeparator)...)
}

func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s StringSet) Add(v string) { s[v] = struct{}{} }

func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// String returns the comma-joined, sorted members.
func (s StringSet) String() string {
	return strings.Join(s.Sorted(), setSeparator)
}

// Constraints maps a characteristic name to its constraint.
//
// On the wire each value keeps the legacy persisted shape:
// integer → {"min":..,"max":..}, boolean → true|false, string → "a,b,c".
type Constraints map[string]Constraint

// Clone returns a deep copy. A nil map clones to an empty one.
func (c Constraints) Clone() Constraints {
	out := make(Constraints, len(c))
	for name, con := range c {
		if con == nil {
			continue
		}
		out[name] = con.clone()
	}
	return out
}

// Names returns the constrained characteristic names in lexical order.
func (c Constraints) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Constraints) MarshalJSON() ([]byte, error) {
	raw := make(map[string]interface{}, len(c))
	for name, con := range c {
		switch v := con.(type) {
		case Range:
			raw[name] = v
		case Flag:
			raw[name] = v.Value
		case OneOf:
			raw[name] = v.Values.String()
		case nil:
			continue
		default:
			return nil, fmt.Errorf("%w: %q has unsupported type %T", ErrInvalidConstraint, name, con)
		}
	}
	return json.Marshal(raw)
}

func (c *Constraints) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Constraints{}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConstraint, err)
	}
	out := make(Constraints, len(raw))
	for name, msg := range raw {
		con, err := decodeConstraint(msg)
		if err != nil {
			return fmt.Errorf("characteristic %q: %w", name, err)
		}
		out[name] = con
	}
	*c = out
	return nil
}

func decodeConstraint(msg json.RawMessage) (Constraint, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 {
		return nil, ErrInvalidConstraint
	}
	switch trimmed[0] {
	case '{':
		var r Range
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConstraint, err)
		}
		return r, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConstraint, err)
		}
		return Flag{Value: b}, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConstraint, err)
		}
		return OneOf{Values: ParseStringSet(s)}, nil
	}
	return nil, fmt.Errorf("%w: unexpected value %s", ErrInvalidConstraint, trimmed)
}
