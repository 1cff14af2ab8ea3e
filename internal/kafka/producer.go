package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"ticket-gate/internal/logger"
	"ticket-gate/internal/models"
)

type Topics struct {
	Events        string
	Notifications string
}

type Producer struct {
	producer sarama.SyncProducer
	mockMode bool
	topics   Topics
	log      *logger.Logger
}

func NewProducer(brokers []string, topics Topics, mockMode bool, log *logger.Logger) (*Producer, error) {
	if mockMode {
		log.LogKafka("MOCK_MODE", "producer", "Running in mock mode - no actual Kafka connection")
		return &Producer{
			producer: nil,
			mockMode: true,
			topics:   topics,
			log:      log,
		}, nil
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	log.LogKafka("CONNECTED", "producer", fmt.Sprintf("Connected to Kafka brokers: %v", brokers))
	return NewProducerWithClient(producer, topics, log), nil
}

// NewProducerWithClient wraps an existing sync producer.
func NewProducerWithClient(producer sarama.SyncProducer, topics Topics, log *logger.Logger) *Producer {
	return &Producer{producer: producer, topics: topics, log: log}
}

func (p *Producer) MockMode() bool { return p.mockMode }

func (p *Producer) PublishTicketEvent(ctx context.Context, event *models.TicketEvent) error {
	return p.publish(p.topics.Events, event.TicketCode, event)
}

func (p *Producer) publish(topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if p.mockMode {
		p.log.LogKafka("MOCK_PUBLISH", topic, fmt.Sprintf("Mock publishing message for ticket: %s", key))
		return nil
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.Error("KAFKA", fmt.Sprintf("Failed to send message to topic %s: %v", topic, err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.log.LogKafka("PUBLISHED", topic, fmt.Sprintf("Message sent to partition %d at offset %d for ticket %s", partition, offset, key))
	return nil
}

func (p *Producer) Close() error {
	if p.mockMode {
		p.log.LogKafka("MOCK_CLOSE", "producer", "Mock producer closed")
		return nil
	}

	if p.producer != nil {
		p.log.LogKafka("CLOSING", "producer", "Closing Kafka producer connection")
		return p.producer.Close()
	}
	return nil
}

// NotificationQueue hands ticket deliveries to the mail worker through Kafka
// instead of talking SMTP inside the request.
type NotificationQueue struct {
	producer *Producer
}

func NewNotificationQueue(producer *Producer) *NotificationQueue {
	return &NotificationQueue{producer: producer}
}

func (q *NotificationQueue) Name() string { return "kafka" }

func (q *NotificationQueue) Send(ctx context.Context, n *models.TicketNotification) error {
	return q.producer.publish(q.producer.topics.Notifications, n.TicketCode, n)
}
