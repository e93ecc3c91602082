package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/diffable/internal/diff"
	"github.com/roach88/diffable/internal/snapshot"
	"github.com/roach88/diffable/internal/store"
	"github.com/roach88/diffable/internal/testutil"
)

// View kinds.
const (
	ViewRecorder = "recorder"
	ViewNone     = "none"
)

// Scenario is one conformance scenario.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// View is ViewRecorder (default) or ViewNone.
	View string `yaml:"view,omitempty"`

	// Store switches the scenario to list mode.
	Store *StoreSpec `yaml:"store,omitempty"`

	// Animated is the default for steps, and the flag list mode applies with.
	Animated *bool `yaml:"animated,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// StoreSpec defines the list published in list mode. A key prefixed with
// "-" sorts descending.
type StoreSpec struct {
	Entity    string   `yaml:"entity"`
	OrderBy   []string `yaml:"order_by"`
	SectionBy string   `yaml:"section_by,omitempty"`
}

// SortKeys converts OrderBy to store sort keys.
func (s StoreSpec) SortKeys() []store.SortKey {
	keys := make([]store.SortKey, len(s.OrderBy))
	for i, k := range s.OrderBy {
		if len(k) > 1 && k[0] == '-' {
			keys[i] = store.SortKey{KeyPath: k[1:], Descending: true}
			continue
		}
		keys[i] = store.SortKey{KeyPath: k}
	}
	return keys
}

// Step is one apply (snapshot mode) or one batch of store operations (list
// mode).
type Step struct {
	Snapshot any       `yaml:"snapshot,omitempty"`
	Ops      []StoreOp `yaml:"ops,omitempty"`
	Animated *bool     `yaml:"animated,omitempty"`
	Expect   *Expect   `yaml:"expect,omitempty"`
}

// StoreOp is a single store write. Exactly one field is set.
type StoreOp struct {
	Insert *ObjectArgs `yaml:"insert,omitempty"`
	Update *ObjectArgs `yaml:"update,omitempty"`
	Delete *ObjectArgs `yaml:"delete,omitempty"`
}

// ObjectArgs names an object and, for writes, its attributes.
type ObjectArgs struct {
	ID         string         `yaml:"id"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

// Expect checks the last apply of a step.
type Expect struct {
	// Applies is the number of applies the step must produce.
	Applies *int `yaml:"applies,omitempty"`

	// Stages lists the stage names in order, e.g. "delete section".
	Stages []string `yaml:"stages,omitempty"`

	// Counts is compared field by field; unset counts must be zero.
	Counts *diff.Counts `yaml:"counts,omitempty"`

	// Sections is the compact notation of the expected item identifiers.
	Sections *string `yaml:"sections,omitempty"`
}

// Assertion validates the whole run.
type Assertion struct {
	Type     string `yaml:"type"`
	Count    int    `yaml:"count,omitempty"`
	Stage    string `yaml:"stage,omitempty"`
	Sections string `yaml:"sections,omitempty"`
}

// Assertion type constants.
const (
	AssertApplyCount    = "apply_count"
	AssertFinalSections = "final_sections"
	AssertTransactions  = "transactions"
	AssertAllSettled    = "all_settled"
	AssertStageCount    = "stage_count"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, []string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", p, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, paths, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.View {
	case "":
		s.View = ViewRecorder
	case ViewRecorder, ViewNone:
	default:
		return fmt.Errorf("view must be %q or %q, got %q", ViewRecorder, ViewNone, s.View)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Store != nil {
		if s.Store.Entity == "" {
			return fmt.Errorf("store.entity is required")
		}
		if len(s.Store.OrderBy) == 0 {
			return fmt.Errorf("store.order_by is required and must be non-empty")
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(s.Store != nil, step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(listMode bool, step Step) error {
	if listMode {
		if step.Snapshot != nil {
			return fmt.Errorf("snapshot is not allowed in a store scenario")
		}
		if step.Animated != nil {
			return fmt.Errorf("animated is set per scenario in a store scenario")
		}
		for j, op := range step.Ops {
			if err := validateOp(op); err != nil {
				return fmt.Errorf("ops[%d]: %w", j, err)
			}
		}
	} else {
		if len(step.Ops) > 0 {
			return fmt.Errorf("ops require a store block")
		}
		if _, err := decodeSnapshot(step.Snapshot); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}
	if step.Expect != nil && step.Expect.Sections != nil {
		if _, err := testutil.ParseSections(*step.Expect.Sections); err != nil {
			return fmt.Errorf("expect.sections: %w", err)
		}
	}
	return nil
}

func validateOp(op StoreOp) error {
	n := 0
	for _, args := range []*ObjectArgs{op.Insert, op.Update, op.Delete} {
		if args == nil {
			continue
		}
		n++
		if args.ID == "" {
			return fmt.Errorf("id is required")
		}
	}
	if n != 1 {
		return fmt.Errorf("exactly one of insert, update or delete is required")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertApplyCount, AssertTransactions, AssertAllSettled:
	case AssertStageCount:
		if a.Stage == "" {
			return fmt.Errorf("stage_count requires a stage")
		}
	case AssertFinalSections:
		if _, err := testutil.ParseSections(a.Sections); err != nil {
			return fmt.Errorf("final_sections: %w", err)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// decodeSnapshot accepts the compact notation or a snapshot document.
func decodeSnapshot(raw any) (snapshot.Snapshot, error) {
	if src, ok := raw.(string); ok {
		sections, err := testutil.ParseSections(src)
		if err != nil {
			return snapshot.Snapshot{}, err
		}
		return snapshot.FromSections(sections)
	}
	return snapshot.Decode(raw)
}
