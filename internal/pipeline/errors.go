package pipeline

import (
	"errors"
	"fmt"

	"github.com/newsmelody/api/internal/model"
)

// ErrNotYetReady signals that a human-dependent artifact is absent. It is a
// pollable condition, not a failure: the session stays at its current state
// and the same transition can be attempted again later.
var ErrNotYetReady = errors.New("not yet ready")

// ErrSessionTerminal signals an advance attempt on a finished session.
var ErrSessionTerminal = errors.New("session is in a terminal state")

// ValidationError marks malformed or missing required input. It is never
// retried and surfaces immediately.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// TransientError wraps an error from an external capability that is expected
// to be retry-recoverable (network, quota, timeout). The retry policy only
// re-attempts calls that fail with a TransientError.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is marked retry-recoverable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// StageError is terminal for one attempt of one transition: the session did
// not advance and the same transition is safe to re-invoke later.
type StageError struct {
	Stage model.SessionStatus
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// PartialFailureError reports a bulk operation where some items succeeded
// before others failed. Every success is persisted before this surfaces;
// nothing is rolled back.
type PartialFailureError struct {
	Succeeded int
	Failed    int
	Errs      []error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure: %d succeeded, %d failed (first: %v)",
		e.Succeeded, e.Failed, e.Errs[0])
}
