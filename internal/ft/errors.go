package ft

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPlanNotApproved guards execution: a plan must be explicitly approved
// before any of its actions are applied.
var ErrPlanNotApproved = errors.New("plan is not approved")

// TransientIOError marks a filesystem failure that is worth retrying
// (permission hiccup, lock, network mount glitch).
type TransientIOError struct {
	Path string
	Err  error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient io error on %s: %v", e.Path, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }

// IntegrityError reports a mismatch between expected and actual content
// (hash or size). It is never retried automatically.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity mismatch on %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// SourceChangedError is raised by the executor when an action's source file
// no longer exists or no longer matches the recorded content hash. It fails
// that action only; the rest of the plan continues.
type SourceChangedError struct {
	Path   string
	Reason string
}

func (e *SourceChangedError) Error() string {
	return fmt.Sprintf("source changed before execution: %s (%s)", e.Path, e.Reason)
}

// ConfigurationError aborts a whole planner invocation: an unresolvable
// template or malformed structure ruleset has no defined partial semantics.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Detail)
}

// RollbackIncompleteError reports checkpointed files that could not be
// restored. The discrepancies are carried in full; rollback never swallows
// a failed restore silently.
type RollbackIncompleteError struct {
	Discrepancies []string
}

func (e *RollbackIncompleteError) Error() string {
	return fmt.Sprintf("rollback incomplete, %d file(s) not restored: %s",
		len(e.Discrepancies), strings.Join(e.Discrepancies, "; "))
}
