package services

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrCheckInFieldsRequired = errors.New("ticket code and organizer PIN are required")
	ErrUnauthorized          = errors.New("unauthorized scan attempt")
	ErrTooManyAttempts       = errors.New("too many failed scan attempts")
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrAlreadyCheckedIn      = errors.New("ticket already checked in")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// ValidationError is a rejected reservation request. Message is safe to show
// to the guest.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + " (" + strings.Join(e.Fields, ", ") + ")"
}

// AlreadyCheckedInError carries the time of the scan that consumed the ticket.
type AlreadyCheckedInError struct {
	TicketCode string
	ScannedAt  *time.Time
}

func (e *AlreadyCheckedInError) Error() string {
	return "ticket " + e.TicketCode + " already checked in"
}

func (e *AlreadyCheckedInError) Is(target error) bool { return target == ErrAlreadyCheckedIn }

const (
	OpSaveReservation = "save reservation"
	OpFindReservation = "find reservation"
	OpMarkCheckedIn   = "mark checked in"
)

// DependencyError wraps a store failure without exposing it to the client.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *DependencyError) Unwrap() error { return e.Err }

func (e *DependencyError) Is(target error) bool { return target == ErrDependencyUnavailable }
