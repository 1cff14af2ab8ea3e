package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-gate/internal/logger"
	"ticket-gate/internal/models"
	"ticket-gate/internal/storage"
)

// AttemptLimiter throttles repeated wrong organizer PINs from one client.
type AttemptLimiter interface {
	Blocked(ctx context.Context, clientKey string) (bool, error)
	RecordFailure(ctx context.Context, clientKey string) error
	Reset(ctx context.Context, clientKey string) error
}

type CheckInService struct {
	organizerPin string
	store        storage.Store
	limiter      AttemptLimiter
	publisher    EventPublisher
	log          *logger.Logger

	now func() time.Time
}

// NewCheckInService accepts a nil limiter, which disables throttling.
func NewCheckInService(organizerPin string, store storage.Store, limiter AttemptLimiter, publisher EventPublisher, log *logger.Logger) *CheckInService {
	return &CheckInService{
		organizerPin: organizerPin,
		store:        store,
		limiter:      limiter,
		publisher:    publisher,
		log:          log,
		now:          time.Now,
	}
}

// CheckIn consumes a ticket exactly once. The PIN is checked before the
// ticket is looked up so a wrong PIN learns nothing about the code.
func (s *CheckInService) CheckIn(ctx context.Context, req *models.CheckInRequest) (*models.CheckInResult, error) {
	code := strings.TrimSpace(req.TicketCode)
	if code == "" || req.OrganizerPin == "" {
		return nil, ErrCheckInFieldsRequired
	}

	if s.throttled(ctx, req.ClientKey) {
		s.log.LogSecurity("SCAN_THROTTLED", fmt.Sprintf("Client %s is locked out after repeated wrong PINs", req.ClientKey))
		return nil, ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(req.OrganizerPin), []byte(s.organizerPin)) != 1 {
		s.log.LogSecurity("BAD_PIN", fmt.Sprintf("Unauthorized scan attempt from %s", req.ClientKey))
		s.recordFailure(ctx, req.ClientKey)
		return nil, ErrUnauthorized
	}
	s.resetFailures(ctx, req.ClientKey)

	reservation, err := s.store.GetReservationByTicketCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.LogTicket("UNKNOWN", code, "Scan of a ticket that does not exist")
			return nil, ErrTicketNotFound
		}
		s.log.Error("CHECKIN", fmt.Sprintf("Failed to look up ticket %s: %v", code, err))
		return nil, &DependencyError{Op: OpFindReservation, Err: err}
	}

	// Early exit only; the conditional update below is what guarantees a
	// single winner.
	if reservation.Consumed() {
		s.log.LogTicket("REPLAY", code, "Ticket was already scanned")
		return nil, &AlreadyCheckedInError{TicketCode: code, ScannedAt: reservation.ScannedAt}
	}

	scannedAt := s.now().UTC()
	if err := s.store.MarkCheckedIn(ctx, reservation.ID, scannedAt); err != nil {
		if errors.Is(err, storage.ErrAlreadyCheckedIn) {
			s.log.LogTicket("RACE_LOST", code, "Concurrent scan consumed the ticket first")
			return nil, &AlreadyCheckedInError{TicketCode: code, ScannedAt: s.winningScanTime(ctx, code)}
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		s.log.Error("CHECKIN", fmt.Sprintf("Failed to mark ticket %s as scanned: %v", code, err))
		return nil, &DependencyError{Op: OpMarkCheckedIn, Err: err}
	}

	s.log.LogTicket("CHECKED_IN", code, "Guest "+reservation.FullName+" admitted")

	event := &models.TicketEvent{
		Type:       "ticket.checked_in",
		TicketCode: code,
		TicketType: reservation.TicketType,
		Status:     models.StatusCheckedIn,
		Amount:     reservation.PaymentAmount,
		Timestamp:  scannedAt,
	}
	if err := s.publisher.PublishTicketEvent(ctx, event); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish check-in of %s: %v", code, err))
	}

	return &models.CheckInResult{
		TicketCode: code,
		GuestName:  reservation.FullName,
		ScannedAt:  scannedAt,
	}, nil
}

func (s *CheckInService) winningScanTime(ctx context.Context, code string) *time.Time {
	current, err := s.store.GetReservationByTicketCode(ctx, code)
	if err != nil {
		return nil
	}
	return current.ScannedAt
}

// Limiter errors fail open: Redis trouble must not stop the door.
func (s *CheckInService) throttled(ctx context.Context, clientKey string) bool {
	if s.limiter == nil || clientKey == "" {
		return false
	}
	blocked, err := s.limiter.Blocked(ctx, clientKey)
	if err != nil {
		s.log.Warn("REDIS", "PIN throttle unavailable: "+err.Error())
		return false
	}
	return blocked
}

func (s *CheckInService) recordFailure(ctx context.Context, clientKey string) {
	if s.limiter == nil || clientKey == "" {
		return
	}
	if err := s.limiter.RecordFailure(ctx, clientKey); err != nil {
		s.log.Warn("REDIS", "Failed to record PIN failure: "+err.Error())
	}
}

func (s *CheckInService) resetFailures(ctx context.Context, clientKey string) {
	if s.limiter == nil || clientKey == "" {
		return
	}
	if err := s.limiter.Reset(ctx, clientKey); err != nil {
		s.log.Warn("REDIS", "Failed to reset PIN failures: "+err.Error())
	}
}
