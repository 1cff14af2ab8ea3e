package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticket-gate/internal/config"
	"ticket-gate/internal/logger"
	"ticket-gate/internal/models"
	"ticket-gate/internal/notify"
	"ticket-gate/internal/pricing"
	"ticket-gate/internal/qr"
	"ticket-gate/internal/storage"
	"ticket-gate/internal/utils"
)

const maxIdentityAttempts = 3

type EventPublisher interface {
	PublishTicketEvent(ctx context.Context, event *models.TicketEvent) error
}

type QRRenderer interface {
	Render(content string) (*qr.Artifact, error)
}

type ReservationSettings struct {
	BaseURL       string
	Event         config.EventConfig
	NotifyTimeout time.Duration
}

type ReservationService struct {
	settings  ReservationSettings
	prices    *pricing.Table
	store     storage.Store
	renderer  QRRenderer
	notifier  notify.Notifier
	publisher EventPublisher
	log       *logger.Logger

	newIdentity func(baseURL string) utils.TicketIdentity
	now         func() time.Time
}

func NewReservationService(settings ReservationSettings, prices *pricing.Table, store storage.Store, renderer QRRenderer,
	notifier notify.Notifier, publisher EventPublisher, log *logger.Logger) *ReservationService {
	if settings.NotifyTimeout <= 0 {
		settings.NotifyTimeout = 10 * time.Second
	}
	return &ReservationService{
		settings:    settings,
		prices:      prices,
		store:       store,
		renderer:    renderer,
		notifier:    notifier,
		publisher:   publisher,
		log:         log,
		newIdentity: utils.NewTicketIdentity,
		now:         time.Now,
	}
}

// CreateReservation validates the request completely before touching the
// store, so a rejected request never leaves a partial record behind.
func (s *ReservationService) CreateReservation(ctx context.Context, req *models.ReservationRequest) (*models.Reservation, error) {
	if err := validateRequired(req); err != nil {
		s.log.Warn("RESERVATION", err.Error())
		return nil, err
	}

	category := req.TicketType.String()
	required, err := s.prices.Validate(category)
	if err != nil {
		var disabled *pricing.DisabledError
		if errors.As(err, &disabled) {
			s.log.Warn("RESERVATION", fmt.Sprintf("Rejected sold out category %s", category))
			return nil, &ValidationError{Message: disabled.Reason}
		}
		s.log.Warn("RESERVATION", fmt.Sprintf("Rejected unknown category %q", category))
		return nil, &ValidationError{Message: "Invalid ticket type selected."}
	}

	if !req.PaymentAmount.Equals(required) {
		s.log.Warn("RESERVATION", fmt.Sprintf("Amount mismatch for %s: got %v, want %d", category, req.PaymentAmount.Float(), required))
		return nil, &ValidationError{
			Message: fmt.Sprintf("Payment amount must be exactly %s %d for %s.", s.settings.Event.Currency, required, category),
		}
	}

	var (
		reservation *models.Reservation
		artifact    *qr.Artifact
	)
	for attempt := 1; ; attempt++ {
		reservation, artifact, err = s.issue(ctx, req, category, required)
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrDuplicateTicketCode) && attempt < maxIdentityAttempts {
			s.log.Warn("RESERVATION", fmt.Sprintf("Ticket code collision on attempt %d, regenerating", attempt))
			continue
		}
		return nil, err
	}

	s.log.LogTicket("ISSUED", reservation.TicketCode, fmt.Sprintf("%s ticket for %s", category, reservation.FullName))

	s.dispatch(ctx, reservation, artifact)
	s.publish(ctx, "ticket.issued", reservation)

	return reservation, nil
}

func (s *ReservationService) issue(ctx context.Context, req *models.ReservationRequest, category string, amount int64) (*models.Reservation, *qr.Artifact, error) {
	id := s.newIdentity(s.settings.BaseURL)

	reservation := &models.Reservation{
		ID:               id.ReservationID,
		TicketCode:       id.TicketCode,
		FullName:         req.FullName.String(),
		Email:            req.Email.String(),
		Phone:            req.Phone.String(),
		Guests:           req.Guests.String(),
		GroupType:        req.GroupType.String(),
		TicketType:       category,
		PaymentMethod:    req.PaymentMethod.String(),
		PaymentReference: req.PaymentReference.String(),
		PaymentAmount:    amount,
		CheckInURL:       id.CheckInURL,
		Status:           models.StatusPendingReview,
		ScanCount:        0,
		CreatedAt:        s.now().UTC(),
	}
	reservation.QRPayload = &models.QRPayload{
		TicketCode:    reservation.TicketCode,
		CheckInURL:    reservation.CheckInURL,
		Event:         s.settings.Event.Name,
		Date:          s.settings.Event.Date,
		GuestName:     reservation.FullName,
		Email:         reservation.Email,
		Guests:        reservation.Guests,
		TicketType:    category,
		PaymentAmount: amount,
		Policy:        s.settings.Event.Policy,
	}

	artifact, err := s.renderer.Render(reservation.CheckInURL)
	if err != nil {
		s.log.Error("RESERVATION", fmt.Sprintf("Failed to render QR for %s: %v", reservation.TicketCode, err))
		return nil, nil, fmt.Errorf("failed to render ticket: %w", err)
	}
	reservation.QRCodeDataURL = artifact.DataURL

	if err := s.store.SaveReservation(ctx, reservation); err != nil {
		if errors.Is(err, storage.ErrDuplicateTicketCode) {
			return nil, nil, err
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save reservation %s: %v", reservation.TicketCode, err))
		return nil, nil, &DependencyError{Op: OpSaveReservation, Err: err}
	}
	s.log.LogDatabase("SAVE", "reservations", fmt.Sprintf("Reservation %s saved successfully", reservation.TicketCode))

	return reservation, artifact, nil
}

// dispatch waits at most NotifyTimeout. The ticket is already issued at this
// point, so failures are only logged.
func (s *ReservationService) dispatch(ctx context.Context, r *models.Reservation, artifact *qr.Artifact) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.NotifyTimeout)
	defer cancel()

	err := s.notifier.Send(ctx, &models.TicketNotification{
		Recipient:     r.Email,
		GuestName:     r.FullName,
		TicketCode:    r.TicketCode,
		TicketType:    r.TicketType,
		PaymentAmount: r.PaymentAmount,
		CheckInURL:    r.CheckInURL,
		QRCodePNG:     artifact.PNG,
		IssuedAt:      r.CreatedAt,
	})
	if err != nil {
		s.log.Error("NOTIFY", fmt.Sprintf("Failed to send ticket %s via %s: %v", r.TicketCode, s.notifier.Name(), err))
		s.log.LogProcess("FALLBACK", fmt.Sprintf("Reservation %s issued despite notification failure", r.TicketCode))
		return
	}
	s.log.LogTicket("NOTIFIED", r.TicketCode, "Ticket handed to "+s.notifier.Name())
}

func (s *ReservationService) publish(ctx context.Context, eventType string, r *models.Reservation) {
	event := &models.TicketEvent{
		Type:       eventType,
		TicketCode: r.TicketCode,
		TicketType: r.TicketType,
		Status:     r.Status,
		Amount:     r.PaymentAmount,
		Timestamp:  s.now().UTC(),
	}
	if err := s.publisher.PublishTicketEvent(ctx, event); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish %s for %s: %v", eventType, r.TicketCode, err))
	}
}

func validateRequired(req *models.ReservationRequest) error {
	fields := []struct {
		name  string
		value models.FlexString
	}{
		{"fullName", req.FullName},
		{"email", req.Email},
		{"phone", req.Phone},
		{"guests", req.Guests},
		{"groupType", req.GroupType},
		{"ticketType", req.TicketType},
		{"paymentMethod", req.PaymentMethod},
		{"paymentReference", req.PaymentReference},
	}

	var missing []string
	for _, f := range fields {
		if f.value.Blank() {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Message: "Please fill all required fields.", Fields: missing}
	}
	return nil
}
