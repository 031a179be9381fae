package app

// Run tracks a CLI operation that may mutate the registry.
// Runs are created in memory with ID=0. Only registry-mutating commands
// persist them (giving them an auto-increment ID from the registry).
type Run struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewRun creates a new in-memory run.
func NewRun(operation, parameters string) *Run {
	return &Run{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this run has been saved to the registry.
func (r *Run) Persisted() bool {
	return r.ID != 0
}
