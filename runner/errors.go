package runner

import (
	"errors"
	"fmt"
)

// PreconditionError aborts a test before or while running it: a missing
// environment file or a summary without executions.
type PreconditionError struct {
	Test string
	Err  error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed for test %s: %v", e.Test, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// IsPreconditionError checks if the error is or wraps a PreconditionError
func IsPreconditionError(err error) bool {
	var precondErr *PreconditionError
	return err != nil && errors.As(err, &precondErr)
}

// IsRunError checks if the error is or wraps a RunError
func IsRunError(err error) bool {
	var runErr *RunError
	return err != nil && errors.As(err, &runErr)
}
