package types

// Diagnostic is a structured diagnostic event emitted by the ledger
// during simulation or execution. Contract panics surface here.
type Diagnostic struct {
	Event   string  `cramberry:"1"`
	Message string  `cramberry:"2"`
	Data    []Value `cramberry:"3"`
}

// Simulation is the result of a dry-run of an envelope against
// current ledger state.
type Simulation struct {
	// Result is the decoded return value. Nil on failure.
	Result *Value `cramberry:"1"`
	// MinResourceFee is the resource fee the envelope must add on top
	// of its inclusion fee.
	MinResourceFee int64     `cramberry:"2"`
	Resources      Resources `cramberry:"3"`
	// Error is the ledger's failure reason. Empty on success.
	Error        string       `cramberry:"4"`
	Diagnostics  []Diagnostic `cramberry:"5"`
	LatestLedger uint32       `cramberry:"6"`
}

// OK returns true if the simulation succeeded.
func (s Simulation) OK() bool { return s.Error == "" && s.Result != nil }
