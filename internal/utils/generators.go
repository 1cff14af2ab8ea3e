package utils

import (
	"strings"

	"github.com/google/uuid"
)

const (
	TicketCodePrefix = "7ALA-"
	ticketCodeLength = 8
)

type TicketIdentity struct {
	ReservationID string
	TicketCode    string
	CheckInURL    string
}

// NewTicketIdentity draws a random v4 reservation id and derives the public
// ticket code and check-in URL from it.
func NewTicketIdentity(baseURL string) TicketIdentity {
	id := uuid.NewString()
	code := TicketCodeFor(id)
	return TicketIdentity{
		ReservationID: id,
		TicketCode:    code,
		CheckInURL:    CheckInURLFor(baseURL, code),
	}
}

func TicketCodeFor(reservationID string) string {
	prefix := reservationID
	if len(prefix) > ticketCodeLength {
		prefix = prefix[:ticketCodeLength]
	}
	return TicketCodePrefix + strings.ToUpper(prefix)
}

func CheckInURLFor(baseURL, ticketCode string) string {
	return strings.TrimRight(baseURL, "/") + "/check-in/" + ticketCode
}
