package pipeline

import (
	"errors"
	"fmt"
)

// ErrCancelled is the outcome of a run cancelled before completion. It is
// not surfaced through the error sink: the user asked for it.
var ErrCancelled = errors.New("CANCELLED: evaluation cancelled")

// BusyError is returned under the reject policy when a channel id is
// resubmitted while its prior evaluation is still running.
type BusyError struct {
	ChannelID string
}

// Error implements the error interface.
func (e *BusyError) Error() string {
	return fmt.Sprintf("BUSY: channel %q is still evaluating", e.ChannelID)
}

// IsBusy reports whether err is a BusyError.
func IsBusy(err error) bool {
	var e *BusyError
	return errors.As(err, &e)
}

// EvaluationError is the worker-phase failure delivered on a run's Done
// channel. Crash marks worker-level failures (panics) as opposed to
// ordinary evaluation errors.
type EvaluationError struct {
	Message string
	Crash   bool
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	if e.Crash {
		return fmt.Sprintf("WORKER_CRASH: %s", e.Message)
	}
	return fmt.Sprintf("EVALUATION_FAILURE: %s", e.Message)
}

// IsWorkerCrash reports whether err is a worker-level crash.
func IsWorkerCrash(err error) bool {
	var e *EvaluationError
	return errors.As(err, &e) && e.Crash
}

// IsEvaluationFailure reports whether err is an ordinary evaluation
// failure.
func IsEvaluationFailure(err error) bool {
	var e *EvaluationError
	return errors.As(err, &e) && !e.Crash
}
