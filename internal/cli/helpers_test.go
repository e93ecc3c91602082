package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// writeFile creates name in dir with content and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns stdout and the error.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const (
	v1YAML = `
sections:
  - id: s1
    items: [a, b, c]
`
	v2YAML = `
sections:
  - id: s1
    items: [b, a, c, d]
`
	v3CUE = `
snapshot: sections: [
	{id: "s1", items: ["b", "c"]},
	{id: "s2", items: [{id: "a", content: "v2"}]},
]
`
)
