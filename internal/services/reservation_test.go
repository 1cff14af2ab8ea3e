package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticket-gate/internal/models"
	"ticket-gate/internal/qr"
	"ticket-gate/internal/storage"
	"ticket-gate/internal/utils"
)

type reservationFixture struct {
	svc       *ReservationService
	store     *countingStore
	notifier  *MockNotifier
	publisher *MockPublisher
}

func newReservationFixture(t *testing.T) *reservationFixture {
	t.Helper()
	f := &reservationFixture{
		store:     newCountingStore(),
		notifier:  new(MockNotifier),
		publisher: new(MockPublisher),
	}
	f.svc = NewReservationService(
		ReservationSettings{BaseURL: "http://localhost:3000", Event: testEvent(), NotifyTimeout: time.Second},
		launchPricing(), f.store, qr.NewRenderer(), f.notifier, f.publisher, quietLogger(),
	)
	return f
}

func validRequest(category string, amount float64) *models.ReservationRequest {
	return &models.ReservationRequest{
		FullName:         "Nour Adel",
		Email:            "nour@example.com",
		Phone:            "+201000000000",
		Guests:           "2",
		GroupType:        "couple",
		TicketType:       models.FlexString(category),
		PaymentMethod:    "instapay",
		PaymentReference: "IP-99812",
		PaymentAmount:    models.NewAmount(amount),
	}
}

func TestCreateReservationStanding(t *testing.T) {
	f := newReservationFixture(t)
	f.notifier.On("Send", mock.Anything, mock.AnythingOfType("*models.TicketNotification")).Return(nil)
	f.publisher.On("PublishTicketEvent", mock.Anything, mock.MatchedBy(func(e *models.TicketEvent) bool {
		return e.Type == "ticket.issued"
	})).Return(nil)

	r, err := f.svc.CreateReservation(context.Background(), validRequest("standing", 1500))
	require.NoError(t, err)

	assert.Regexp(t, `^7ALA-[0-9A-F]{8}$`, r.TicketCode)
	assert.True(t, strings.HasSuffix(r.CheckInURL, "/check-in/"+r.TicketCode))
	assert.Equal(t, int64(1500), r.PaymentAmount)
	assert.Equal(t, models.StatusPendingReview, r.Status)
	assert.Equal(t, 0, r.ScanCount)
	assert.Nil(t, r.ScannedAt)
	assert.True(t, strings.HasPrefix(r.QRCodeDataURL, "data:image/png;base64,"))
	require.NotNil(t, r.QRPayload)
	assert.Equal(t, "ELECTRAMCO", r.QRPayload.Event)
	assert.Equal(t, "Nour Adel", r.QRPayload.GuestName)

	stored, err := f.store.GetReservationByTicketCode(context.Background(), r.TicketCode)
	require.NoError(t, err)
	assert.Equal(t, r.ID, stored.ID)

	f.notifier.AssertNumberOfCalls(t, "Send", 1)
	sent := f.notifier.Calls[0].Arguments.Get(1).(*models.TicketNotification)
	assert.Equal(t, "nour@example.com", sent.Recipient)
	assert.NotEmpty(t, sent.QRCodePNG)
	f.publisher.AssertExpectations(t)
}

func TestCreateReservationRejectsSoldOutVIP(t *testing.T) {
	f := newReservationFixture(t)

	_, err := f.svc.CreateReservation(context.Background(), validRequest("vip", 5000))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "VIP tables are sold out.", ve.Message)
	assert.Equal(t, 0, f.store.saved())
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestCreateReservationRejectsAmountMismatch(t *testing.T) {
	for _, amount := range []float64{1000, 1499.99, 1500.01, 0, 5000} {
		f := newReservationFixture(t)

		_, err := f.svc.CreateReservation(context.Background(), validRequest("standing", amount))

		var ve *ValidationError
		require.True(t, errors.As(err, &ve), "amount %v", amount)
		assert.Equal(t, "Payment amount must be exactly EGP 1500 for standing.", ve.Message)
		assert.Equal(t, 0, f.store.saved(), "nothing persisted for amount %v", amount)
	}
}

func TestCreateReservationRejectsMissingAmount(t *testing.T) {
	f := newReservationFixture(t)
	req := validRequest("standing", 1500)
	req.PaymentAmount = models.Amount{}

	_, err := f.svc.CreateReservation(context.Background(), req)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Message, "exactly EGP 1500")
}

func TestCreateReservationAggregatesMissingFields(t *testing.T) {
	f := newReservationFixture(t)
	req := validRequest("standing", 1500)
	req.Email = ""
	req.Guests = "  "
	req.PaymentReference = ""

	_, err := f.svc.CreateReservation(context.Background(), req)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "Please fill all required fields.", ve.Message)
	assert.Equal(t, []string{"email", "guests", "paymentReference"}, ve.Fields)
	assert.Equal(t, 0, f.store.saved())
}

func TestCreateReservationRejectsUnknownCategory(t *testing.T) {
	f := newReservationFixture(t)

	_, err := f.svc.CreateReservation(context.Background(), validRequest("backstage", 1500))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "Invalid ticket type selected.", ve.Message)
}

func TestCreateReservationSurvivesNotificationFailure(t *testing.T) {
	f := newReservationFixture(t)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp: connection refused"))
	f.publisher.On("PublishTicketEvent", mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	r, err := f.svc.CreateReservation(context.Background(), validRequest("group", 5000))

	require.NoError(t, err)
	assert.Equal(t, "group", r.TicketType)
	assert.Equal(t, 1, f.store.saved())
}

func TestCreateReservationFailsWhenStoreFails(t *testing.T) {
	store := new(MockStore)
	store.On("SaveReservation", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	notifier := new(MockNotifier)
	publisher := new(MockPublisher)

	svc := NewReservationService(ReservationSettings{BaseURL: "http://localhost:3000", Event: testEvent()},
		launchPricing(), store, qr.NewRenderer(), notifier, publisher, quietLogger())

	_, err := svc.CreateReservation(context.Background(), validRequest("standing", 1500))

	assert.ErrorIs(t, err, ErrDependencyUnavailable)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishTicketEvent", mock.Anything, mock.Anything)
}

func TestCreateReservationRegeneratesOnCollision(t *testing.T) {
	f := newReservationFixture(t)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("PublishTicketEvent", mock.Anything, mock.Anything).Return(nil)

	ids := []string{
		"aaaaaaaa-0000-4000-8000-000000000001",
		"aaaaaaaa-0000-4000-8000-000000000002", // same ticket code as the first
		"bbbbbbbb-0000-4000-8000-000000000003",
	}
	f.svc.newIdentity = func(baseURL string) utils.TicketIdentity {
		id := ids[0]
		ids = ids[1:]
		code := utils.TicketCodeFor(id)
		return utils.TicketIdentity{ReservationID: id, TicketCode: code, CheckInURL: utils.CheckInURLFor(baseURL, code)}
	}

	first, err := f.svc.CreateReservation(context.Background(), validRequest("standing", 1500))
	require.NoError(t, err)
	second, err := f.svc.CreateReservation(context.Background(), validRequest("standing", 1500))
	require.NoError(t, err)

	assert.Equal(t, "7ALA-AAAAAAAA", first.TicketCode)
	assert.Equal(t, "7ALA-BBBBBBBB", second.TicketCode)
	assert.Equal(t, 2, f.store.saved())
}

func TestCreateReservationGivesUpAfterRepeatedCollisions(t *testing.T) {
	store := new(MockStore)
	store.On("SaveReservation", mock.Anything, mock.Anything).Return(storage.ErrDuplicateTicketCode)

	svc := NewReservationService(ReservationSettings{BaseURL: "http://localhost:3000", Event: testEvent()},
		launchPricing(), store, qr.NewRenderer(), new(MockNotifier), new(MockPublisher), quietLogger())

	_, err := svc.CreateReservation(context.Background(), validRequest("standing", 1500))

	assert.ErrorIs(t, err, storage.ErrDuplicateTicketCode)
	store.AssertNumberOfCalls(t, "SaveReservation", maxIdentityAttempts)
}

func TestIssuedTicketCodesAreDistinct(t *testing.T) {
	f := newReservationFixture(t)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("PublishTicketEvent", mock.Anything, mock.Anything).Return(nil)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		r, err := f.svc.CreateReservation(context.Background(), validRequest("standing", 1500))
		require.NoError(t, err)
		require.False(t, seen[r.TicketCode])
		seen[r.TicketCode] = true
	}
}
