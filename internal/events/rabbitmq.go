package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitNotifier publishes events to a topic exchange, routed by event type.
type RabbitNotifier struct {
	conn     *amqp.Connection
	ch       amqpPublisher
	closer   func() error
	exchange string
}

// NewRabbitNotifier dials the broker and declares a durable topic exchange.
func NewRabbitNotifier(url, exchange string) (*RabbitNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("events: declare exchange: %w", err)
	}
	return &RabbitNotifier{conn: conn, ch: ch, closer: ch.Close, exchange: exchange}, nil
}

func newRabbitNotifierWithChannel(ch amqpPublisher, exchange string) *RabbitNotifier {
	return &RabbitNotifier{ch: ch, exchange: exchange}
}

func (n *RabbitNotifier) Notify(ctx context.Context, evt AppointmentEvent) error {
	body, err := evt.Encode()
	if err != nil {
		return err
	}
	err = n.ch.PublishWithContext(ctx, n.exchange, string(evt.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.EventID,
		Timestamp:    evt.OccurredAt,
		Type:         string(evt.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", evt.Type, err)
	}
	return nil
}

// Close releases the channel and connection.
func (n *RabbitNotifier) Close() error {
	if n.closer != nil {
		_ = n.closer()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
