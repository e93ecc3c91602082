package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decodeYAML(t *testing.T, src string) (Snapshot, error) {
	t.Helper()
	var tree any
	require.NoError(t, yaml.Unmarshal([]byte(src), &tree))
	return Decode(tree)
}

func TestDecode_YAMLDocument(t *testing.T) {
	snap, err := decodeYAML(t, `
sections:
  - id: s1
    items: [a, b, {id: c, content: v2}]
  - id: 7
    items:
      - id: 42
      - {id: d, attributes: {title: hello, done: false}}
  - id: empty
`)
	require.NoError(t, err)

	assert.Equal(t, []ID{"s1", "7", "empty"}, snap.SectionIDs())
	assert.Equal(t, []ID{"a", "b", "c", "42", "d"}, snap.ItemIDs())

	c, _ := snap.Item("c")
	assert.Equal(t, "v2", c.Content)

	d, _ := snap.Item("d")
	assert.Len(t, d.Content, 64, "attributes hash to a hex digest")
}

func TestDecode_AttributesHashIsOrderIndependent(t *testing.T) {
	a, err := decodeYAML(t, `[{id: s, items: [{id: x, attributes: {a: 1, b: two}}]}]`)
	require.NoError(t, err)
	b, err := decodeYAML(t, `[{id: s, items: [{id: x, attributes: {b: two, a: 1}}]}]`)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestDecode_ListRootAndNil(t *testing.T) {
	snap, err := decodeYAML(t, `[{id: s1, items: [a]}]`)
	require.NoError(t, err)
	assert.Equal(t, []ID{"a"}, snap.ItemIDs())

	snap, err = Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.NumberOfSections())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code ContractErrorCode
	}{
		{"scalar root", `hello`, ErrCodeMalformed},
		{"missing sections key", `{other: 1}`, ErrCodeMalformed},
		{"sections not a list", `{sections: 3}`, ErrCodeMalformed},
		{"section not a mapping", `[s1]`, ErrCodeMalformed},
		{"missing section id", `[{items: [a]}]`, ErrCodeMalformed},
		{"items not a list", `[{id: s1, items: a}]`, ErrCodeMalformed},
		{"bad item id", `[{id: s1, items: [[a]]}]`, ErrCodeMalformed},
		{"float attribute", `[{id: s1, items: [{id: a, attributes: {x: 1.5}}]}]`, ""},
		{"duplicate section", `[{id: s1}, {id: s1}]`, ErrCodeDuplicateSection},
		{"duplicate item", `[{id: s1, items: [a]}, {id: s2, items: [a]}]`, ErrCodeDuplicateItem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeYAML(t, tt.src)
			require.Error(t, err)
			if tt.code != "" {
				assert.True(t, IsContractError(err, tt.code), "got %v", err)
			}
		})
	}
}

func TestSnapshot_JSON(t *testing.T) {
	snap := NewBuilder().
		AppendSections("s1").
		AppendItems([]Item{{ID: "a", Content: "v1"}, {ID: "b"}}, "s1").
		Build()

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sections":[{"id":"s1","items":[{"id":"a","content":"v1"},{"id":"b"}]}]}`, string(data))

	var back Snapshot
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, snap.Equal(back))

	empty, err := json.Marshal(Snapshot{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sections":[]}`, string(empty))

	err = json.Unmarshal([]byte(`{"sections":[{"id":"s"},{"id":"s"}]}`), &back)
	assert.True(t, IsContractError(err, ErrCodeDuplicateSection))
}

func TestSnapshot_Hash(t *testing.T) {
	a := NewBuilder().AppendSections("s1").AppendIDs("s1", "a", "b").Build()
	b := NewBuilder().AppendSections("s1").AppendIDs("s1", "a", "b").Build()
	c := NewBuilder().AppendSections("s1").AppendIDs("s1", "b", "a").Build()

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	hc, err := c.Hash()
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
}
