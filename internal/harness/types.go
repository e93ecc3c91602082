package harness

import (
	"github.com/roach88/diffable/internal/diff"
)

// TraceEvent is one completed apply.
type TraceEvent struct {
	Step     int         `json:"step"` // 0 for the initial list apply
	Seq      int64       `json:"seq"`
	ApplyID  string      `json:"apply_id"`
	Stages   []string    `json:"stages"`
	Counts   diff.Counts `json:"counts"`
	Sections string      `json:"sections"` // identifiers only
	Animated bool        `json:"animated"`
	View     bool        `json:"view"`
	Settled  bool        `json:"settled"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Pass bool `json:"pass"`

	// Trace holds every apply in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors is empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Sections is the coordinator's settled state at the end of the run.
	Sections string `json:"sections"`

	// Transactions counts the recorder's non-animated transactions.
	Transactions int `json:"transactions"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddApplyTrace appends an apply to the trace.
func (r *Result) AddApplyTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// stageNames renders a changeset as "kind level" names.
func stageNames(cs diff.Changeset) []string {
	names := make([]string, len(cs))
	for i, st := range cs {
		names[i] = st.Kind.String() + " " + st.Level.String()
	}
	return names
}
