package cli

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffCommand_Text(t *testing.T) {
	dir := t.TempDir()
	v1 := writeFile(t, dir, "v1.yaml", v1YAML)
	v2 := writeFile(t, dir, "v2.yaml", v2YAML)

	out, err := execute(t, NewDiffCommand(&RootOptions{Format: "text"}), v1, v2)
	require.NoError(t, err)

	assert.Contains(t, out, "move item")
	assert.Contains(t, out, "insert item")
	assert.Contains(t, out, "d at (0,3)")
	assert.Contains(t, out, "2 edits in 2 stages")
}

func TestDiffCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	v1 := writeFile(t, dir, "v1.yaml", v1YAML)
	v3 := writeFile(t, dir, "v3.cue", v3CUE)

	out, err := execute(t, NewDiffCommand(&RootOptions{Format: "json"}), v1, v3)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Counts      map[string]int   `json:"counts"`
			Stages      []map[string]any `json:"stages"`
			Fingerprint string           `json:"fingerprint"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.Fingerprint)
	assert.NotEmpty(t, resp.Data.Stages)
	assert.NotEmpty(t, resp.Data.Counts)

	again, err := execute(t, NewDiffCommand(&RootOptions{Format: "json"}), v1, v3)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestDiffCommand_NoChanges(t *testing.T) {
	v1 := writeFile(t, t.TempDir(), "v1.yaml", v1YAML)

	out, err := execute(t, NewDiffCommand(&RootOptions{Format: "text"}), v1, v1)
	require.NoError(t, err)
	assert.Contains(t, out, "No changes.")
}

func TestDiffCommand_LoadError(t *testing.T) {
	v1 := writeFile(t, t.TempDir(), "v1.yaml", v1YAML)

	out, err := execute(t, NewDiffCommand(&RootOptions{Format: "text"}), v1, "missing.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", v1YAML)
	bad := writeFile(t, dir, "bad.yaml", `
sections:
  - id: s1
  - id: s1
`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), good)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+good+" (1 sections, 3 items)")

	out, err = execute(t, NewValidateCommand(&RootOptions{Format: "json"}), good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string         `json:"status"`
		Data   ValidateResult `json:"data"`
		Error  *CLIError      `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Invalid)
	require.Len(t, resp.Data.Files, 2)
	assert.Equal(t, ErrCodeInvalid, resp.Data.Files[1].Code)
}

func TestApplyAndReplay_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "diffable.db")
	v1 := writeFile(t, dir, "v1.yaml", v1YAML)
	v2 := writeFile(t, dir, "v2.yaml", v2YAML)
	v3 := writeFile(t, dir, "v3.cue", v3CUE)

	out, err := execute(t, NewApplyCommand(&RootOptions{Format: "json"}), "--db", db, v1, v2)
	require.NoError(t, err)

	var first struct {
		Data ApplyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	require.Len(t, first.Data.Applies, 2)
	assert.Equal(t, int64(1), first.Data.Applies[0].Seq)
	assert.Equal(t, int64(2), first.Data.Applies[1].Seq)
	assert.Equal(t, v2, first.Data.Applies[1].Path)
	assert.Equal(t, 1, first.Data.Applies[1].Counts.ItemInserted)
	assert.Equal(t, int64(0), first.Data.Resumed)
	assert.Equal(t, 4, first.Data.Items)

	// A second run continues numbering and diffs from the logged state.
	out, err = execute(t, NewApplyCommand(&RootOptions{Format: "json"}), "--db", db, "--animated=false", v3)
	require.NoError(t, err)

	var second struct {
		Data ApplyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	require.Len(t, second.Data.Applies, 1)
	assert.Equal(t, int64(2), second.Data.Resumed)
	assert.Equal(t, int64(3), second.Data.Applies[0].Seq)
	assert.Equal(t, 1, second.Data.Applies[0].Counts.ItemDeleted)
	assert.Equal(t, 1, second.Data.Applies[0].Counts.SectionInserted)
	assert.Equal(t, 2, second.Data.Sections)
	assert.Equal(t, 3, second.Data.Items)

	out, err = execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 3 apply(s), 0 unsettled")
	assert.Contains(t, out, "✓ All changesets verified deterministic")
}

func TestApplyCommand_NoView(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "diffable.db")
	v1 := writeFile(t, dir, "v1.yaml", v1YAML)

	out, err := execute(t, NewApplyCommand(&RootOptions{Format: "text"}), "--db", db, "--no-view", v1)
	require.NoError(t, err)
	assert.Contains(t, out, "[1] ")
	assert.Contains(t, out, "Current state: 1 sections, 3 items")
}

func TestApplyCommand_InvalidSnapshot(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "sections:\n  - id: s1\n  - id: s1\n")

	out, err := execute(t, NewApplyCommand(&RootOptions{Format: "text"}), "--db", filepath.Join(dir, "x.db"), bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
}

func TestApplyCommand_RequiresDatabase(t *testing.T) {
	v1 := writeFile(t, t.TempDir(), "v1.yaml", v1YAML)

	_, err := execute(t, NewApplyCommand(&RootOptions{Format: "text"}), v1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestReplayCommand_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No applies found in database.")
}

func TestReplayCommand_Mismatch(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "diffable.db")
	v1 := writeFile(t, dir, "v1.yaml", v1YAML)
	v2 := writeFile(t, dir, "v2.yaml", v2YAML)

	_, err := execute(t, NewApplyCommand(&RootOptions{Format: "text"}), "--db", db, v1, v2)
	require.NoError(t, err)

	raw, err := sql.Open("sqlite3", db)
	require.NoError(t, err)
	_, err = raw.Exec(`UPDATE applies SET fingerprint = 'tampered' WHERE seq = 2`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.AllDeterministic)
	require.Len(t, resp.Data.Mismatches, 1)
	assert.Equal(t, int64(2), resp.Data.Mismatches[0].Seq)
	assert.Equal(t, "tampered", resp.Data.Mismatches[0].Stored)
}

const passingScenario = `name: passing
view: none
steps:
  - snapshot: "s1: a, b"
    expect:
      sections: "s1: a, b"
`

const failingScenario = `name: failing
steps:
  - snapshot: "s1: a"
    expect:
      sections: "s1: b"
`

func TestTestCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "passing.yaml", passingScenario)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ passing (1 applies)")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "passing.yaml", passingScenario)
	writeFile(t, dir, "failing.yaml", failingScenario)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "passing.yaml", passingScenario)
	writeFile(t, dir, "failing.yaml", failingScenario)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir, "--filter", "pass*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "failing")
}

func TestTestCommand_RepositoryScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "../harness/testdata/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "0 failed")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
