package harness

import (
	"github.com/roach88/helix/internal/change"
)

// TraceEvent is one committed event as observed during a scenario run.
type TraceEvent struct {
	Origin string
	Seq    int64
	Kind   string
	Path   string
	Old    change.Value
	New    change.Value
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every step and assertion held.
	Pass bool

	// Trace contains every event committed during the run, in delivery
	// order. Used for event assertions and golden comparison.
	Trace []TraceEvent

	// Errors contains step and assertion failure messages.
	// Empty if Pass is true.
	Errors []string

	// Views holds the final view of every node after the steps ran.
	Views map[string]change.Value
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Views:  make(map[string]change.Value),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addEventTrace appends a committed event to the trace.
func (r *Result) addEventTrace(ev change.Event) {
	r.Trace = append(r.Trace, TraceEvent{
		Origin: ev.Origin,
		Seq:    ev.Seq,
		Kind:   ev.Kind.String(),
		Path:   ev.Path.String(),
		Old:    ev.OldValue,
		New:    ev.NewValue,
	})
}
