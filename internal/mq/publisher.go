package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends messages to the job exchange.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish sends msg with routingKey as a persistent message.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, Exchange, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", Exchange, routingKey, err)
		}
		p.logger.Debug("published message", "routing_key", routingKey, "message_id", msg.ID, "type", msg.Type)
		return nil
	})
}

// Submit publishes a job request. Any JSON-encodable request is accepted;
// workers decode it as a pipeline request.
func (p *Publisher) Submit(ctx context.Context, request any) (string, error) {
	msg, err := NewMessage(MessageJobRequested, request)
	if err != nil {
		return "", err
	}
	return msg.ID, p.Publish(ctx, RoutingPending, msg)
}

// Completed publishes the outcome of a job.
func (p *Publisher) Completed(ctx context.Context, c JobCompleted) error {
	msg, err := NewMessage(MessageJobCompleted, c)
	if err != nil {
		return err
	}
	return p.Publish(ctx, RoutingCompleted, msg)
}
