package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatch_UnmarshalJSON_DistinguishesAbsentFromNull(t *testing.T) {
	var p Patch
	err := json.Unmarshal([]byte(`{"category": null, "maxPrice": 900}`), &p)
	require.NoError(t, err)

	assert.True(t, p.Category.Set)
	assert.Nil(t, p.Category.Value)
	assert.False(t, p.MinPrice.Set)
	require.True(t, p.MaxPrice.Set)
	assert.Equal(t, 900.0, *p.MaxPrice.Value)
	assert.False(t, p.Characteristics.Set)
	assert.False(t, p.Empty())

	var empty Patch
	require.NoError(t, json.Unmarshal([]byte(`{}`), &empty))
	assert.True(t, empty.Empty())
}

func TestFilterState_Apply_ShallowMerge(t *testing.T) {
	start := FilterState{
		Category:        PtrTo("Scooters"),
		MinPrice:        PtrTo(100.0),
		MaxPrice:        PtrTo(900.0),
		Characteristics: Constraints{"Range": Between(30, 50)},
	}

	next := start.Apply(Patch{MaxPrice: Value(700.0)})
	assert.Equal(t, "Scooters", *next.Category)
	assert.Equal(t, 100.0, *next.MinPrice)
	assert.Equal(t, 700.0, *next.MaxPrice)
	assert.Contains(t, next.Characteristics, "Range")
	assert.Equal(t, 900.0, *start.MaxPrice, "Apply must not mutate the receiver")

	cleared := next.Apply(Patch{Category: Null[string](), MinPrice: Null[float64](), Characteristics: Null[Constraints]()})
	assert.Nil(t, cleared.Category)
	assert.Nil(t, cleared.MinPrice)
	assert.Equal(t, 700.0, *cleared.MaxPrice)
	assert.NotNil(t, cleared.Characteristics)
	assert.Empty(t, cleared.Characteristics)
}

func TestEncodeDecodeState(t *testing.T) {
	state := FilterState{
		Category:        PtrTo("Scooters"),
		MaxPrice:        PtrTo(1200.0),
		Characteristics: Constraints{"Color": In("Red", "Blue"), "Foldable": Flag{Value: true}},
	}

	blob, err := EncodeState(state)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"category": "Scooters",
		"minPrice": null,
		"maxPrice": 1200,
		"characteristics": {"Color": "Blue,Red", "Foldable": true}
	}`, string(blob))

	decoded, err := DecodeState(blob)
	require.NoError(t, err)
	assert.Equal(t, state.Category, decoded.Category)
	assert.Nil(t, decoded.MinPrice)
	assert.Equal(t, state.MaxPrice, decoded.MaxPrice)
	assert.Equal(t, Flag{Value: true}, decoded.Characteristics["Foldable"])
	assert.True(t, decoded.Characteristics["Color"].(OneOf).Values.Has("Blue"))
}

func TestDecodeState_CorruptFallsBackToInitial(t *testing.T) {
	for _, blob := range []string{`not json`, `{"characteristics": {"Range": 5}}`, `{"minPrice": "cheap"}`} {
		state, err := DecodeState([]byte(blob))
		require.Error(t, err, blob)
		assert.Equal(t, InitialState(), state, blob)
	}

	state, err := DecodeState([]byte(`{"category": "Bikes"}`))
	require.NoError(t, err)
	assert.NotNil(t, state.Characteristics, "missing characteristics must decode to an empty map")
}
