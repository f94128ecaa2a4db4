package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange    = "concept2video"
	ExchangeDLQ = "concept2video.dlq"

	RoutingPending   = "pending"
	RoutingCompleted = "completed"
	RoutingDLQ       = "jobs"
)

// Topology names the queues derived from the configured base queue.
type Topology struct {
	Pending   string
	Completed string
	DLQ       string
}

// NewTopology derives the queue names from base.
func NewTopology(base string) Topology {
	return Topology{
		Pending:   base,
		Completed: base + ".completed",
		DLQ:       base + ".dlq",
	}
}

// Declare creates the exchanges, queues and bindings. Declarations are
// idempotent, so every process may call it on start.
func (t Topology) Declare(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		for _, ex := range []string{Exchange, ExchangeDLQ} {
			if err := ch.ExchangeDeclare(ex, "direct", true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		queues := []struct {
			name, exchange, key string
			args                amqp.Table
		}{
			{t.Pending, Exchange, RoutingPending, amqp.Table{
				"x-dead-letter-exchange":    ExchangeDLQ,
				"x-dead-letter-routing-key": RoutingDLQ,
			}},
			{t.Completed, Exchange, RoutingCompleted, nil},
			{t.DLQ, ExchangeDLQ, RoutingDLQ, nil},
		}
		for _, q := range queues {
			if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
			if err := ch.QueueBind(q.name, q.key, q.exchange, false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", q.name, q.exchange, err)
			}
		}
		return nil
	})
}
