package harness

import "github.com/roach88/splitledger/internal/kvp"

// OutcomeOK is the trace outcome of a step that succeeded.
const OutcomeOK = "ok"

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Op      string `json:"op"`
	Target  string `json:"target"`
	Outcome string `json:"outcome"` // OutcomeOK or an error code
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success: every step matched its
	// expectation and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Journal is the edit journal tags, e.g. "BCBR".
	Journal string `json:"journal"`

	// State is the final state: live transactions (as canonical
	// documents, in declaration order) and account balances.
	State kvp.Frame `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  kvp.Frame{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(seq int64, op, target, outcome string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     seq,
		Op:      op,
		Target:  target,
		Outcome: outcome,
	})
}
