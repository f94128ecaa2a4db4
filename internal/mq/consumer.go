package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPermanent marks a handler failure that must not be redelivered.
var ErrPermanent = errors.New("permanent failure")

// Handler processes one message. A nil error acks it; an error wrapping
// ErrPermanent dead-letters it; any other error requeues it.
type Handler func(ctx context.Context, msg *Message) error

// Consumer reads a queue and hands each message to its handler.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int
}

// NewConsumer creates a consumer. prefetch bounds the unacked messages held
// by this process, which is the number of jobs it runs at once.
func NewConsumer(conn *Connection, logger *slog.Logger, queue string, prefetch int, h Handler) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{conn: conn, logger: logger, queue: queue, handler: h, prefetch: prefetch}
}

// Run consumes until ctx ends, resubscribing after reconnects.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "queue", c.queue, "error", err)
		} else {
			c.logger.Info("consumer started", "queue", c.queue, "prefetch", c.prefetch)
			err = c.drain(ctx, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries closed, waiting for reconnect", "queue", c.queue, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

// drain handles up to prefetch deliveries concurrently. It returns only
// after every handler it started has finished, so a cancelled job still
// settles its delivery and cleans up before the process exits.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	sem := make(chan struct{}, c.prefetch)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				raw.Nack(false, true)
				return ctx.Err()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				c.handle(ctx, raw)
			}()
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "queue", c.queue, "error", err)
		raw.Nack(false, false)
		return
	}

	err := c.handler(ctx, &msg)
	switch {
	case err == nil:
		raw.Ack(false)
	case errors.Is(err, ErrPermanent):
		c.logger.Error("message rejected", "message_id", msg.ID, "type", msg.Type, "error", err)
		raw.Nack(false, false)
	default:
		c.logger.Warn("handler failed, requeueing", "message_id", msg.ID, "type", msg.Type, "error", err)
		raw.Nack(false, true)
	}
}
