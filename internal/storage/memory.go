package storage

import (
	"context"
	"sync"
	"time"

	"ticket-gate/internal/models"
)

type InMemoryStore struct {
	reservations map[string]*models.Reservation // by reservation id
	byTicketCode map[string]string
	mutex        sync.RWMutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		reservations: make(map[string]*models.Reservation),
		byTicketCode: make(map[string]string),
	}
}

func (s *InMemoryStore) SaveReservation(ctx context.Context, reservation *models.Reservation) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.byTicketCode[reservation.TicketCode]; exists {
		return ErrDuplicateTicketCode
	}
	if _, exists := s.reservations[reservation.ID]; exists {
		return ErrDuplicateTicketCode
	}

	stored := *reservation
	s.reservations[reservation.ID] = &stored
	s.byTicketCode[reservation.TicketCode] = reservation.ID
	return nil
}

func (s *InMemoryStore) GetReservationByTicketCode(ctx context.Context, ticketCode string) (*models.Reservation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, exists := s.byTicketCode[ticketCode]
	if !exists {
		return nil, ErrNotFound
	}
	// Hand out a copy so callers never mutate stored state outside the lock.
	found := *s.reservations[id]
	if found.ScannedAt != nil {
		at := *found.ScannedAt
		found.ScannedAt = &at
	}
	return &found, nil
}

func (s *InMemoryStore) MarkCheckedIn(ctx context.Context, reservationID string, scannedAt time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	reservation, exists := s.reservations[reservationID]
	if !exists {
		return ErrNotFound
	}
	if reservation.Consumed() {
		return ErrAlreadyCheckedIn
	}

	at := scannedAt
	reservation.Status = models.StatusCheckedIn
	reservation.ScannedAt = &at
	reservation.ScanCount = 1
	return nil
}

func (s *InMemoryStore) HealthCheck(ctx context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }
