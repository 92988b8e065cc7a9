package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName is the topic exchange the mail messages are published to.
	ExchangeName = "autohaus.mail"
	routingKey   = "mail.neues-auto"
)

type mailMessage struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// AMQPMailer publishes mail notifications to RabbitMQ. Delivery is handled
// by an external mail consumer; this side only enqueues.
type AMQPMailer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewAMQPMailer connects to RabbitMQ and declares the mail exchange.
func NewAMQPMailer(url string, logger *slog.Logger) (*AMQPMailer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	logger.Info("mail publisher connected", "exchange", ExchangeName)
	return &AMQPMailer{conn: conn, channel: ch, logger: logger}, nil
}

// Send publishes one mail message with persistent delivery.
func (m *AMQPMailer) Send(ctx context.Context, subject, body string) error {
	payload, err := json.Marshal(mailMessage{Subject: subject, Body: body})
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	err = m.channel.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
	if err != nil {
		m.logger.Error("failed to publish mail", "routing_key", routingKey, "error", err)
		return err
	}
	m.logger.Debug("mail published", "routing_key", routingKey, "subject", subject)
	return nil
}

// Close closes the channel and connection.
func (m *AMQPMailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channel != nil {
		if err := m.channel.Close(); err != nil {
			m.logger.Warn("error closing channel", "error", err)
		}
	}
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}
