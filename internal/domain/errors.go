package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoAvailableBattery       = errors.New("no available battery at station")
	ErrInvalidTransition        = errors.New("invalid battery status transition")
	ErrConcurrencyLimitExceeded = errors.New("concurrent rental limit exceeded")
	ErrNotFound                 = errors.New("rental not found")
	ErrAlreadyClosed            = errors.New("rental already closed")
	ErrInvalidInterval          = errors.New("return time is before rent time")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInternalConsistency      = errors.New("internal consistency error")

	ErrStationNotFound       = errors.New("station not found")
	ErrBatteryNotFound       = errors.New("battery not found")
	ErrBatteryAlreadyRented  = errors.New("battery already has an open rental")
	ErrAccountNotFound       = errors.New("account not found")
	ErrReconciliationPending = errors.New("rental has a pending reconciliation")
	ErrCaseNotFound          = errors.New("reconciliation case not found")
	ErrInvalidArgument       = errors.New("invalid argument")
)

// InternalConsistencyError is raised when a step that cannot fail under
// correct sequencing does fail. Ticket is the reference shown to the user
// and attached to the reconciliation case.
type InternalConsistencyError struct {
	Ticket   string
	RentalID RentalID
	Cause    error
}

func (e *InternalConsistencyError) Error() string {
	return fmt.Sprintf("internal consistency error (ticket %s, rental %d): %v", e.Ticket, e.RentalID, e.Cause)
}

func (e *InternalConsistencyError) Unwrap() []error {
	return []error{ErrInternalConsistency, e.Cause}
}

// UserMessage is the text safe to show to an end user.
func (e *InternalConsistencyError) UserMessage() string {
	return fmt.Sprintf("Something went wrong on our side. Please contact support with ticket %s.", e.Ticket)
}

// IsExpected reports whether err is a normal business outcome the caller
// should show as a specific reason rather than a fault.
func IsExpected(err error) bool {
	return errors.Is(err, ErrNoAvailableBattery) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrConcurrencyLimitExceeded) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyClosed) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrStationNotFound) ||
		errors.Is(err, ErrBatteryNotFound) ||
		errors.Is(err, ErrReconciliationPending) ||
		errors.Is(err, ErrCaseNotFound) ||
		errors.Is(err, ErrInvalidArgument)
}
