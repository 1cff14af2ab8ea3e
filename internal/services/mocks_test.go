package services

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"ticket-gate/internal/config"
	"ticket-gate/internal/logger"
	"ticket-gate/internal/models"
	"ticket-gate/internal/pricing"
	"ticket-gate/internal/storage"
)

// countingStore is the real in-memory store plus a count of accepted saves.
type countingStore struct {
	*storage.InMemoryStore
	saves atomic.Int64
}

func newCountingStore() *countingStore {
	return &countingStore{InMemoryStore: storage.NewInMemoryStore()}
}

func (s *countingStore) SaveReservation(ctx context.Context, r *models.Reservation) error {
	if err := s.InMemoryStore.SaveReservation(ctx, r); err != nil {
		return err
	}
	s.saves.Add(1)
	return nil
}

func (s *countingStore) saved() int { return int(s.saves.Load()) }

// MockStore implements the storage.Store interface for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveReservation(ctx context.Context, reservation *models.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

func (m *MockStore) GetReservationByTicketCode(ctx context.Context, ticketCode string) (*models.Reservation, error) {
	args := m.Called(ctx, ticketCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *MockStore) MarkCheckedIn(ctx context.Context, reservationID string, scannedAt time.Time) error {
	args := m.Called(ctx, reservationID, scannedAt)
	return args.Error(0)
}

func (m *MockStore) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, n *models.TicketNotification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockNotifier) Name() string { return "mock" }

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishTicketEvent(ctx context.Context, event *models.TicketEvent) error {
	return m.Called(ctx, event).Error(0)
}

func quietLogger() *logger.Logger { return logger.New(io.Discard, logger.LevelFatal) }

func launchPricing() *pricing.Table {
	return pricing.FromConfig(config.PricingConfig{
		Prices:   map[string]int64{"standing": 1500, "group": 5000, "vip": 5000},
		Ordering: []string{"standing", "group", "vip"},
		SoldOut:  []string{"vip"},
		Reasons:  map[string]string{"vip": "VIP tables are sold out."},
	})
}

func testEvent() config.EventConfig {
	return config.EventConfig{Name: "ELECTRAMCO", Date: "07 February", Currency: "EGP", Policy: "21+"}
}
