package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"ticket-gate/internal/logger"
	"ticket-gate/internal/models"
)

// NotificationConsumer is the mail worker side of NotificationQueue.
type NotificationConsumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
	log      *logger.Logger
}

func NewNotificationConsumer(brokers []string, groupID, topic string, log *logger.Logger) (*NotificationConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &NotificationConsumer{
		consumer: consumer,
		topics:   []string{topic},
		log:      log,
	}, nil
}

// ConsumeNotifications blocks until ctx is cancelled or the group fails.
func (c *NotificationConsumer) ConsumeNotifications(ctx context.Context, handler func(context.Context, *models.TicketNotification) error) error {
	consumerHandler := &NotificationHandler{Handler: handler, Log: c.log}

	for {
		if err := c.consumer.Consume(ctx, c.topics, consumerHandler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error consuming notifications: %v", err))
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *NotificationConsumer) Close() error {
	return c.consumer.Close()
}

// NotificationHandler is exported for testing purposes.
type NotificationHandler struct {
	Handler func(context.Context, *models.TicketNotification) error
	Log     *logger.Logger
}

func (h *NotificationHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *NotificationHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks every message, delivered or not: a ticket mail that
// fails here is logged for manual resend rather than retried forever.
func (h *NotificationHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var n models.TicketNotification
		if err := json.Unmarshal(message.Value, &n); err != nil {
			h.Log.Error("KAFKA", fmt.Sprintf("Failed to unmarshal notification at offset %d: %v", message.Offset, err))
			session.MarkMessage(message, "")
			continue
		}

		if err := h.Handler(session.Context(), &n); err != nil {
			h.Log.Error("NOTIFY", fmt.Sprintf("Failed to deliver ticket %s to %s: %v", n.TicketCode, n.Recipient, err))
		} else {
			h.Log.LogTicket("DELIVERED", n.TicketCode, "Ticket email sent by worker")
		}

		session.MarkMessage(message, "")
	}

	return nil
}
