package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrSlotUnavailable      = errors.New("slot is not available")
	ErrSlotBeingBooked      = errors.New("slot is currently being booked, please retry")
	ErrMissingPatient       = errors.New("patient id is required")
	ErrMissingDoctor        = errors.New("doctor id is required")
	ErrInvalidInitialStatus = errors.New("new appointments start as scheduled or pending")
)

// DateParseError reports a raw record whose timestamp could not be turned
// into an instant. The record is dropped from the collection.
type DateParseError struct {
	Field string
	Value any
	Err   error
}

func (e *DateParseError) Error() string {
	if e.Field == "" {
		return "appointment has no date"
	}
	if e.Err != nil {
		return fmt.Sprintf("parse %s %v: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("parse %s %v", e.Field, e.Value)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// InvalidTransitionError is returned when a status change is not in the
// transition table. The appointment is left untouched.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	if e.From.IsTerminal() {
		return fmt.Sprintf("appointment is %s and can no longer change status", e.From)
	}
	return fmt.Sprintf("cannot change appointment status from %s to %s", e.From, e.To)
}

// MissingIdentifierError is returned when an operation needs an appointment
// id and none could be resolved. Writes fail with it before any store call.
type MissingIdentifierError struct {
	Op string
}

func (e *MissingIdentifierError) Error() string {
	if e.Op == "" {
		return "appointment id is required"
	}
	return fmt.Sprintf("%s: appointment id is required", e.Op)
}

// ResolutionFallback records that a person reference could not be resolved
// and a placeholder stub was used instead. It is an event, not an error.
type ResolutionFallback struct {
	AppointmentID string `json:"appointmentId"`
	Role          string `json:"role"`
	CandidateID   string `json:"candidateId,omitempty"`
}

func (f ResolutionFallback) String() string {
	if f.CandidateID == "" {
		return fmt.Sprintf("appointment %s: no %s reference", f.AppointmentID, f.Role)
	}
	return fmt.Sprintf("appointment %s: unknown %s %s", f.AppointmentID, f.Role, f.CandidateID)
}

// IsNotFound reports errors the caller should present as "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrNotFound)
}
