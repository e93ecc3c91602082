package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diffable/internal/snapshot"
)

func TestLoadSnapshotFile_Formats(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "list.yaml", v1YAML},
		{"yml", "list.yml", v1YAML},
		{"json", "list.json", `{"sections": [{"id": "s1", "items": ["a", "b", "c"]}]}`},
		{"cue root", "root.cue", `sections: [{id: "s1", items: ["a", "b", "c"]}]`},
		{"cue snapshot path", "nested.cue", `
_ids: ["a", "b", "c"]
snapshot: sections: [{id: "s1", items: _ids}]
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := LoadSnapshotFile(writeFile(t, dir, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, 1, snap.NumberOfSections())
			assert.Equal(t, 3, snap.NumberOfItems())
			p, ok := snap.IndexPathOfItem("c")
			require.True(t, ok)
			assert.Equal(t, snapshot.IndexPath{Section: 0, Item: 2}, p)
		})
	}
}

func TestLoadSnapshotFile_CUEContent(t *testing.T) {
	snap, err := LoadSnapshotFile(writeFile(t, t.TempDir(), "v3.cue", v3CUE))
	require.NoError(t, err)

	assert.Equal(t, 2, snap.NumberOfSections())
	sections := snap.Sections()
	require.Len(t, sections[1].Items, 1)
	assert.Equal(t, snapshot.ID("a"), sections[1].Items[0].ID)
	assert.Equal(t, "v2", sections[1].Items[0].Content)
}

func TestLoadSnapshotFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing file", dir + "/missing.yaml", ErrCodeNotFound},
		{"unsupported extension", writeFile(t, dir, "list.txt", v1YAML), ErrCodeUnsupported},
		{"yaml syntax", writeFile(t, dir, "bad.yaml", "sections: [\n"), ErrCodeParse},
		{"duplicate item", writeFile(t, dir, "dup.yaml", `
sections:
  - id: s1
    items: [a]
  - id: s2
    items: [a]
`), ErrCodeInvalid},
		{"no sections key", writeFile(t, dir, "empty.json", `{"items": []}`), ErrCodeInvalid},
		{"cue syntax", writeFile(t, dir, "bad.cue", "sections: [\n"), ErrCodeBuildFailed},
		{"cue conflict", writeFile(t, dir, "conflict.cue", `
sections: [{id: "s1", items: []}]
sections: [{id: "s2", items: []}]
`), ErrCodeBuildFailed},
		{"cue incomplete", writeFile(t, dir, "open.cue", `sections: [{id: string, items: []}]`), ErrCodeBuildFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSnapshotFile(tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.code, LoadErrorCode(err))
			assert.Contains(t, err.Error(), tt.code)
		})
	}
}

func TestLoadError_CUEPosition(t *testing.T) {
	path := writeFile(t, t.TempDir(), "conflict.cue", `sections: [{id: "s1", items: []}]
sections: [{id: "s2", items: []}]
`)

	_, err := LoadSnapshotFile(path)
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	require.True(t, le.Pos.IsValid())
	assert.Contains(t, err.Error(), "conflict.cue:")
}

func TestLoadErrorCode_Generic(t *testing.T) {
	assert.Equal(t, ErrCodeGeneric, LoadErrorCode(assert.AnError))
}
