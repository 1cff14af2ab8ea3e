package storage

import (
	"context"
	"errors"
	"time"

	"ticket-gate/internal/models"
)

var (
	ErrNotFound            = errors.New("reservation not found")
	ErrDuplicateTicketCode = errors.New("ticket code already exists")
	ErrAlreadyCheckedIn    = errors.New("reservation already checked in")
)

// Store is the durable record of reservations and their consumption state.
type Store interface {
	SaveReservation(ctx context.Context, reservation *models.Reservation) error
	GetReservationByTicketCode(ctx context.Context, ticketCode string) (*models.Reservation, error)

	// MarkCheckedIn consumes the reservation only if it has never been
	// consumed, as one atomic step. It returns ErrAlreadyCheckedIn when
	// another scan got there first.
	MarkCheckedIn(ctx context.Context, reservationID string, scannedAt time.Time) error

	HealthCheck(ctx context.Context) error
	Close() error
}
