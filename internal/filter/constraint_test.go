package filter

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NazarZnet/E-commerce/internal/domain"
)

func PtrTo[T any](v T) *T {
	return &v
}

func TestParseStringSet(t *testing.T) {
	assert.Empty(t, ParseStringSet(""), "empty string must decode to the empty set")

	set := ParseStringSet("Red,Blue,Red")
	assert.Len(t, set, 2)
	assert.True(t, set.Has("Red"))
	assert.True(t, set.Has("Blue"))
	assert.False(t, set.Has(""))
	assert.Equal(t, "Blue,Red", set.String())
}

func TestConstraint_Kinds(t *testing.T) {
	assert.Equal(t, domain.DataTypeInteger, Between(1, 2).Kind())
	assert.Equal(t, domain.DataTypeBoolean, Flag{Value: true}.Kind())
	assert.Equal(t, domain.DataTypeString, In("a").Kind())
}

func TestConstraints_MarshalJSON_PersistedShape(t *testing.T) {
	c := Constraints{
		"Range":    Between(30, 50),
		"Foldable": Flag{Value: true},
		"Color":    In("Red", "Blue"),
		"Weight":   Range{Max: PtrTo(20.0)},
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Range": {"min": 30, "max": 50},
		"Foldable": true,
		"Color": "Blue,Red",
		"Weight": {"max": 20}
	}`, string(data))
}

func TestConstraints_UnmarshalJSON(t *testing.T) {
	var c Constraints
	err := json.Unmarshal([]byte(`{"Range":{"min":30},"Foldable":false,"Color":"Red,Blue","Empty":""}`), &c)
	require.NoError(t, err)

	require.IsType(t, Range{}, c["Range"])
	r := c["Range"].(Range)
	require.NotNil(t, r.Min)
	assert.Equal(t, 30.0, *r.Min)
	assert.Nil(t, r.Max)

	assert.Equal(t, Flag{Value: false}, c["Foldable"])

	require.IsType(t, OneOf{}, c["Color"])
	assert.ElementsMatch(t, []string{"Blue", "Red"}, c["Color"].(OneOf).Values.Sorted())

	require.IsType(t, OneOf{}, c["Empty"])
	assert.Empty(t, c["Empty"].(OneOf).Values)
}

func TestConstraints_UnmarshalJSON_RejectsUnknownShapes(t *testing.T) {
	for _, doc := range []string{`{"Range": 42}`, `{"Range": [1,2]}`, `{"Range": {"min": "x"}}`, `[]`} {
		var c Constraints
		err := json.Unmarshal([]byte(doc), &c)
		require.Error(t, err, doc)
		assert.True(t, errors.Is(err, ErrInvalidConstraint), doc)
	}
}

func TestConstraints_CloneIsDeep(t *testing.T) {
	orig := Constraints{"Range": Between(1, 2), "Color": In("Red")}
	cp := orig.Clone()

	*cp["Range"].(Range).Min = 99
	cp["Color"].(OneOf).Values.Add("Green")

	assert.Equal(t, 1.0, *orig["Range"].(Range).Min)
	assert.False(t, orig["Color"].(OneOf).Values.Has("Green"))
	assert.Equal(t, []string{"Color", "Range"}, orig.Names())
}
