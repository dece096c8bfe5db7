package resolve

import (
	"errors"
	"fmt"
)

// ValidationError reports a request rejected before any store call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid resolution request: " + e.Reason
}

// ErrNothingSelected is returned when DeleteSelected gets no ids.
var ErrNothingSelected = &ValidationError{Reason: "nothing selected"}

// ErrBusy is returned when a batch is already running on the Resolver.
var ErrBusy = errors.New("a resolution is already in progress")

// Op names the store call that failed.
type Op string

const (
	OpDelete Op = "delete"
	OpUpdate Op = "update"
)

// StoreOperationError is the single failure that halted a batch. Mutations
// applied before it stay applied.
type StoreOperationError struct {
	Op  Op
	ID  string
	Err error
}

func (e *StoreOperationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StoreOperationError) Unwrap() error {
	return e.Err
}
