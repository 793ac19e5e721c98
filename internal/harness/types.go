package harness

// TraceEvent records one applied chain-sync event.
type TraceEvent struct {
	Type string `json:"type"` // "forward" or "rollback"
	Slot uint64 `json:"slot"`
	Hash string `json:"hash,omitempty"`
	Txs  int    `json:"txs,omitempty"`

	// Error is the ingest error code the event failed with, if any.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every event behaved as expected and all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains the applied events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final row count of every table.
	State map[string]int64 `json:"state,omitempty"`

	// Dump is the final store dump, compared against golden files.
	Dump string `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]int64),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddForwardTrace adds an applied block to the trace.
func (r *Result) AddForwardTrace(slot uint64, hash string, txs int, code string) {
	r.Trace = append(r.Trace, TraceEvent{Type: "forward", Slot: slot, Hash: hash, Txs: txs, Error: code})
}

// AddRollbackTrace adds a rollback to the trace. Origin has slot 0 and
// no hash.
func (r *Result) AddRollbackTrace(slot uint64, hash string, code string) {
	r.Trace = append(r.Trace, TraceEvent{Type: "rollback", Slot: slot, Hash: hash, Error: code})
}
