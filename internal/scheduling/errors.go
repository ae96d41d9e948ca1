package scheduling

import (
	"errors"
	"fmt"
	"strings"
)

// ConflictReason is the machine-readable cause of an unavailable slot.
type ConflictReason string

const (
	ReasonNone            ConflictReason = ""
	ReasonOutsideHours    ConflictReason = "outside_hours"
	ReasonTimeOff         ConflictReason = "time_off"
	ReasonBookingConflict ConflictReason = "booking_conflict"
)

// Store level sentinels. The services wrap these into the typed errors below.
var (
	ErrVetNotFound         = errors.New("vet not found")
	ErrPetNotFound         = errors.New("pet not found")
	ErrOwnerNotFound       = errors.New("owner not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrWorkingHourNotFound = errors.New("working hour not found")
	ErrTimeOffNotFound     = errors.New("time off not found")

	// ErrOverlap is returned by BookingStore.CreateBooking when the commit-time
	// overlap check or the storage exclusion constraint rejects the insert.
	ErrOverlap = errors.New("booking overlaps an active booking")

	// ErrTimeOffOverlap is returned by BookingStore.CreateBooking when the
	// commit-time check finds time off over the interval.
	ErrTimeOffOverlap = errors.New("booking overlaps time off")

	// ErrStatusChanged is returned by a compare-and-set status update whose
	// expected current status no longer matches.
	ErrStatusChanged = errors.New("booking status changed concurrently")

	// ErrVetBusy means the per-vet lock could not be acquired in time.
	ErrVetBusy = errors.New("vet schedule is busy, retry shortly")
)

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

type NotFoundError struct {
	Resource string
	Err      error
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

func (e *NotFoundError) Unwrap() error { return e.Err }

type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return "forbidden: " + e.Message
}

type ConflictError struct {
	Reason ConflictReason
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ReasonOutsideHours:
		return "requested slot is outside the vet's working hours"
	case ReasonTimeOff:
		return "requested slot falls within the vet's time off"
	case ReasonBookingConflict:
		return "requested slot overlaps an existing booking"
	}
	return "requested slot is not available"
}

type StateTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}

// ConflictReasonOf returns the reason carried by a ConflictError in err's chain.
func ConflictReasonOf(err error) (ConflictReason, bool) {
	var target *ConflictError
	if errors.As(err, &target) {
		return target.Reason, true
	}
	return ReasonNone, false
}

func IsStateTransition(err error) bool {
	var target *StateTransitionError
	return errors.As(err, &target)
}
