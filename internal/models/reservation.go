package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	StatusPendingReview ReservationStatus = "paid_pending_review"
	StatusCheckedIn     ReservationStatus = "checked_in"
)

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID               string            `json:"reservationId" bun:"reservation_id,pk"`
	TicketCode       string            `json:"ticketCode" bun:"ticket_code,unique"`
	FullName         string            `json:"fullName" bun:"full_name"`
	Email            string            `json:"email" bun:"email"`
	Phone            string            `json:"phone" bun:"phone"`
	Guests           string            `json:"guests" bun:"guests"`
	GroupType        string            `json:"groupType" bun:"group_type"`
	TicketType       string            `json:"ticketType" bun:"ticket_type"`
	PaymentMethod    string            `json:"paymentMethod" bun:"payment_method"`
	PaymentReference string            `json:"paymentReference" bun:"payment_reference"`
	PaymentAmount    int64             `json:"paymentAmount" bun:"payment_amount"`
	CheckInURL       string            `json:"checkInUrl" bun:"check_in_url"`
	QRCodeDataURL    string            `json:"qrCodeDataUrl" bun:"qr_code_data_url"`
	QRPayload        *QRPayload        `json:"qrPayload" bun:"qr_payload,type:json"`
	Status           ReservationStatus `json:"status" bun:"status"`
	ScannedAt        *time.Time        `json:"scannedAt" bun:"scanned_at,nullzero"`
	ScanCount        int               `json:"scanCount" bun:"scan_count"`
	CreatedAt        time.Time         `json:"createdAt" bun:"created_at"`
}

// Consumed reports whether any trace of a previous scan exists on the record.
// Older rows may carry only one of the three markers.
func (r *Reservation) Consumed() bool {
	return r.ScannedAt != nil || r.ScanCount > 0 || r.Status == StatusCheckedIn
}

// QRPayload is the informational content printed alongside the ticket. The
// stored reservation, not this payload, decides whether a ticket is valid.
type QRPayload struct {
	TicketCode    string `json:"ticketCode"`
	CheckInURL    string `json:"checkInUrl"`
	Event         string `json:"event"`
	Date          string `json:"date"`
	GuestName     string `json:"guestName"`
	Email         string `json:"email"`
	Guests        string `json:"guests"`
	TicketType    string `json:"ticketType"`
	PaymentAmount int64  `json:"paymentAmount"`
	Policy        string `json:"policy"`
}

type ReservationRequest struct {
	FullName         FlexString `json:"fullName"`
	Email            FlexString `json:"email"`
	Phone            FlexString `json:"phone"`
	Guests           FlexString `json:"guests"`
	GroupType        FlexString `json:"groupType"`
	TicketType       FlexString `json:"ticketType"`
	PaymentMethod    FlexString `json:"paymentMethod"`
	PaymentReference FlexString `json:"paymentReference"`
	PaymentAmount    Amount     `json:"paymentAmount"`
}

type ReservationResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TicketCode    string `json:"ticketCode"`
	CheckInURL    string `json:"checkInUrl"`
	TicketType    string `json:"ticketType"`
	PaymentAmount int64  `json:"paymentAmount"`
	QRCodeDataURL string `json:"qrCodeDataUrl"`
}

type CheckInRequest struct {
	TicketCode   string `json:"ticketCode"`
	OrganizerPin string `json:"organizerPin"`

	// ClientKey identifies the scanning device for attempt throttling.
	ClientKey string `json:"-"`
}

type CheckInResult struct {
	TicketCode string    `json:"ticketCode"`
	GuestName  string    `json:"guestName"`
	ScannedAt  time.Time `json:"scannedAt"`
}

type CheckInResponse struct {
	Success    bool   `json:"success"`
	TicketCode string `json:"ticketCode"`
	GuestName  string `json:"guestName"`
	Message    string `json:"message"`
}

type TicketEvent struct {
	Type       string            `json:"type"`
	TicketCode string            `json:"ticketCode"`
	TicketType string            `json:"ticketType"`
	Status     ReservationStatus `json:"status"`
	Amount     int64             `json:"paymentAmount"`
	Timestamp  time.Time         `json:"timestamp"`
}

// TicketNotification is everything a notifier needs to deliver a ticket.
// QRCodePNG travels base64-encoded when queued on Kafka.
type TicketNotification struct {
	Recipient     string    `json:"recipient"`
	GuestName     string    `json:"guestName"`
	TicketCode    string    `json:"ticketCode"`
	TicketType    string    `json:"ticketType"`
	PaymentAmount int64     `json:"paymentAmount"`
	CheckInURL    string    `json:"checkInUrl"`
	QRCodePNG     []byte    `json:"qrCodePng"`
	IssuedAt      time.Time `json:"issuedAt"`
}
