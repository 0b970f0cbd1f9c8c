package myerrors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrJobNoLongerAvailable = errors.New("job no longer available")
	ErrNotEligible          = errors.New("driver is not eligible")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrExtensionPending     = errors.New("a time extension is already pending for this job")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrDuplicatePayment     = errors.New("a job is already booked for this payment")

	ErrDBConnect = errors.New("failed to connect to db")
)

// ValidationError describes malformed or contradictory input.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidTransitionError names the state a job was in and the transition that was refused.
type InvalidTransitionError struct {
	JobID     string
	Current   string
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: job %s is %s, cannot %s", e.JobID, e.Current, e.Requested)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// NotEligibleError carries the reason a driver may not claim.
type NotEligibleError struct {
	DriverID string
	Reason   string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("driver %s is not eligible: %s", e.DriverID, e.Reason)
}

func (e *NotEligibleError) Is(target error) bool {
	return target == ErrNotEligible
}

// NotFound wraps ErrNotFound with the entity that was looked up.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}
