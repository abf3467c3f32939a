package reconciler

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInput is returned when identification starts with neither image nor text.
	ErrNoInput = errors.New("an image or a food description is required")

	// ErrBusy is returned when an operation is attempted while a remote call is outstanding.
	ErrBusy = errors.New("a request is already in progress")

	// ErrInvalidTransition is returned when an operation does not apply in the current state.
	ErrInvalidTransition = errors.New("operation not allowed in current state")

	// ErrStaleResponse is returned to a caller whose response arrived after the session moved on.
	ErrStaleResponse = errors.New("response discarded: session moved on")

	// ErrUnknownItem is returned when toggling an item that was not offered.
	ErrUnknownItem = errors.New("item is not one of the offered options")

	// ErrItemNotInBasket is returned when adjusting an item that is not selected.
	ErrItemNotInBasket = errors.New("item is not in the basket")
)

// ValidationError reports bad input at identification start. No state transition happens.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "validation: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// ResolutionError reports an identify or suggest failure. The session returns to idle.
type ResolutionError struct {
	Op  string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not %s food: %v", e.Op, e.Err)
}
func (e *ResolutionError) Unwrap() error { return e.Err }

// FinalizationError reports an aggregate or log failure. The basket is preserved for a retry.
type FinalizationError struct {
	Op  string
	Err error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("could not %s meal: %v", e.Op, e.Err)
}
func (e *FinalizationError) Unwrap() error { return e.Err }
