// Package notify delivers issued tickets to guests.
package notify

import (
	"context"

	"ticket-gate/internal/models"
)

// Notifier delivers a ticket to its guest. Delivery is best effort; callers
// log failures and move on.
type Notifier interface {
	Send(ctx context.Context, n *models.TicketNotification) error
	Name() string
}

// Noop is used when no transport is configured.
type Noop struct{}

func (Noop) Send(ctx context.Context, n *models.TicketNotification) error { return nil }

func (Noop) Name() string { return "none" }
