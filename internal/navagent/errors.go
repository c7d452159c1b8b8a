// Package navagent implements the Navigation Agent Loop (C8): the
// per-turn state machine that drives one browser page through a task by
// interleaving model calls, page distillation, value resolution, and
// action execution.
package navagent

// ErrorKind is the closed error taxonomy for the navigation loop
// (spec.md §7). Every kind but Fatal and Handoff is recoverable within
// the turn loop; exhausting max_turns, a Fatal classification, or a
// Handoff (a hand-off that was not resumed, returned together with its
// Outcome) ends the task early.
type ErrorKind string

const (
	ErrKindModel      ErrorKind = "Model"
	ErrKindPage       ErrorKind = "Page"
	ErrKindLocator    ErrorKind = "Locator"
	ErrKindResolution ErrorKind = "Resolution"
	ErrKindOTP        ErrorKind = "OTP"
	ErrKindHandoff    ErrorKind = "Handoff"
	ErrKindFatal      ErrorKind = "Fatal"
)

// TurnError wraps an error with its classification, so the outer loop
// can decide whether to log-and-continue or abort the task.
type TurnError struct {
	Kind ErrorKind
	Err  error
}

func (e *TurnError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *TurnError) Unwrap() error { return e.Err }
