package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FilterState is the complete set of active narrowing criteria.
// A nil Category means all categories; nil price bounds are unbounded.
type FilterState struct {
	Category        *string     `json:"category"`
	MinPrice        *float64    `json:"minPrice"`
	MaxPrice        *float64    `json:"maxPrice"`
	Characteristics Constraints `json:"characteristics"`
}

// InitialState returns the empty state: no category, no price bounds, no characteristics.
func InitialState() FilterState {
	return FilterState{Characteristics: Constraints{}}
}

// Clone returns a deep copy of s.
func (s FilterState) Clone() FilterState {
	out := FilterState{Characteristics: s.Characteristics.Clone()}
	if s.Category != nil {
		v := *s.Category
		out.Category = &v
	}
	if s.MinPrice != nil {
		v := *s.MinPrice
		out.MinPrice = &v
	}
	if s.MaxPrice != nil {
		v := *s.MaxPrice
		out.MaxPrice = &v
	}
	return out
}

// CategoryName returns the selected category or "" for all categories.
func (s FilterState) CategoryName() string {
	if s.Category == nil {
		return ""
	}
	return *s.Category
}

// Nullable is a patch field that distinguishes "absent" from "explicitly null".
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Value returns a Nullable set to v.
func Value[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// Null returns a Nullable explicitly set to null.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// UnmarshalJSON is only invoked for keys present in the document, which is what marks the field as Set.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// Patch is a shallow update of FilterState. Each field is independently replaceable;
// unset fields keep their current value.
type Patch struct {
	Category        Nullable[string]      `json:"category"`
	MinPrice        Nullable[float64]     `json:"minPrice"`
	MaxPrice        Nullable[float64]     `json:"maxPrice"`
	Characteristics Nullable[Constraints] `json:"characteristics"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return !p.Category.Set && !p.MinPrice.Set && !p.MaxPrice.Set && !p.Characteristics.Set
}

// Apply returns a copy of s with the patch merged in.
// Setting characteristics to null clears the map.
func (s FilterState) Apply(p Patch) FilterState {
	out := s.Clone()
	if p.Category.Set {
		out.Category = copyPtr(p.Category.Value)
	}
	if p.MinPrice.Set {
		out.MinPrice = copyPtr(p.MinPrice.Value)
	}
	if p.MaxPrice.Set {
		out.MaxPrice = copyPtr(p.MaxPrice.Value)
	}
	if p.Characteristics.Set {
		if p.Characteristics.Value == nil {
			out.Characteristics = Constraints{}
		} else {
			out.Characteristics = p.Characteristics.Value.Clone()
		}
	}
	return out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// EncodeState serializes s into the persisted blob format.
func EncodeState(s FilterState) ([]byte, error) {
	if s.Characteristics == nil {
		s.Characteristics = Constraints{}
	}
	blob, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("filter: encode state: %w", err)
	}
	return blob, nil
}

// DecodeState parses a persisted blob. Callers fall back to InitialState on error.
func DecodeState(blob []byte) (FilterState, error) {
	var s FilterState
	if err := json.Unmarshal(blob, &s); err != nil {
		return InitialState(), fmt.Errorf("filter: decode state: %w", err)
	}
	if s.Characteristics == nil {
		s.Characteristics = Constraints{}
	}
	return s, nil
}
