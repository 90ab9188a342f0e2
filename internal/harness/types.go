package harness

import "github.com/roach88/warden/internal/engine"

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// TraceEvent records one side of a repository call.
type TraceEvent struct {
	Type      string         `json:"type"` // "invocation" or "completion"
	ActionURI string         `json:"action_uri"`
	CallID    string         `json:"call_id,omitempty"`
	ID        int64          `json:"id,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Outcome   engine.Outcome `json:"outcome,omitempty"`
	Detail    *engine.Detail `json:"detail,omitempty"`
	Seq       int64          `json:"seq"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every invocation and completion in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace adds an invocation to the trace.
func (r *Result) AddInvocationTrace(actionURI string, id int64, args map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:      EventInvocation,
		ActionURI: actionURI,
		ID:        id,
		Args:      args,
		Seq:       seq,
	})
}

// AddCompletionTrace adds a completion to the trace. detail is dropped
// for successful calls.
func (r *Result) AddCompletionTrace(actionURI, callID string, id int64, detail engine.Detail, seq int64) {
	ev := TraceEvent{
		Type:      EventCompletion,
		ActionURI: actionURI,
		CallID:    callID,
		ID:        id,
		Outcome:   detail.Outcome,
		Seq:       seq,
	}
	if detail.Outcome != engine.OutcomeOK {
		ev.Detail = &detail
	}
	r.Trace = append(r.Trace, ev)
}

// Completions returns the completion events in order.
func (r *Result) Completions() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventCompletion {
			out = append(out, ev)
		}
	}
	return out
}
