package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("s")
	var _ Value = Int(1)
	var _ Value = Bool(true)
	var _ Value = Array{}
	var _ Value = Object{}
}

func TestObjectSortedKeysUTF16(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...), which sorts before U+FF61
	// in UTF-16 but after it in UTF-8.
	obj := Object{"｡": Int(1), "\U0001F600": Int(2)}
	assert.Equal(t, []string{"\U0001F600", "｡"}, obj.SortedKeys())
}

func TestObjectJSONRoundTrip(t *testing.T) {
	in := Object{
		"big":   Int(9007199254740993),
		"name":  String("x"),
		"tags":  Array{String("a"), Bool(false)},
		"empty": Null{},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Object
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, Equal(in, out))
}

func TestObjectUnmarshalRejectsFloat(t *testing.T) {
	var out Object
	err := json.Unmarshal([]byte(`{"x":1.5}`), &out)
	assert.Error(t, err)
}

func TestParseValueRejectsNull(t *testing.T) {
	_, err := ParseValue([]byte(`{"x":null}`))
	assert.Error(t, err)

	v, err := ParseValue([]byte(`{"x":[1,"a",true]}`))
	require.NoError(t, err)
	assert.Equal(t, Object{"x": Array{Int(1), String("a"), Bool(true)}}, v)
}

func TestCloneIsDeep(t *testing.T) {
	in := Object{"nested": Object{"a": Int(1)}, "list": Array{Int(1)}}
	out := in.Clone()
	out["nested"].(Object)["a"] = Int(2)
	out["list"].(Array)[0] = Int(2)

	assert.Equal(t, Int(1), in["nested"].(Object)["a"])
	assert.Equal(t, Int(1), in["list"].(Array)[0])
}
