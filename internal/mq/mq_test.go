package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/concept2video/internal/telemetry"
)

type ackRecorder struct {
	acked, nacked, requeued int
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func delivery(t *testing.T, ack *ackRecorder, body any) amqp.Delivery {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case string:
		data = []byte(b)
	default:
		var err error
		data, err = json.Marshal(b)
		require.NoError(t, err)
	}
	return amqp.Delivery{Acknowledger: ack, Body: data}
}

func TestMessageRoundTrip(t *testing.T) {
	type request struct {
		Concept string `json:"concept"`
		Output  string `json:"output"`
	}
	msg, err := NewMessage(MessageJobRequested, request{Concept: "dns", Output: "/out/dns.mp4"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))

	got, err := ParsePayload[request](&decoded)
	require.NoError(t, err)
	assert.Equal(t, "dns", got.Concept)
	assert.Equal(t, "/out/dns.mp4", got.Output)
}

func TestConsumer_Handle(t *testing.T) {
	msg, err := NewMessage(MessageJobRequested, map[string]string{"concept": "x"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    any
		err     error
		acked   int
		nacked  int
		requeue int
	}{
		{"ok", msg, nil, 1, 0, 0},
		{"transient", msg, errors.New("disk full"), 0, 1, 1},
		{"permanent", msg, fmt.Errorf("bad request: %w", ErrPermanent), 0, 1, 0},
		{"garbage", "{not json", nil, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *Message
			c := NewConsumer(nil, telemetry.Discard(), "jobs", 0, func(_ context.Context, m *Message) error {
				seen = m
				return tt.err
			})
			ack := &ackRecorder{}
			c.handle(context.Background(), delivery(t, ack, tt.body))

			assert.Equal(t, tt.acked, ack.acked)
			assert.Equal(t, tt.nacked, ack.nacked)
			assert.Equal(t, tt.requeue, ack.requeued)
			if tt.name != "garbage" {
				require.NotNil(t, seen)
				assert.Equal(t, msg.ID, seen.ID)
			}
		})
	}
}

func TestTopologyNames(t *testing.T) {
	top := NewTopology("concept2video.jobs")
	assert.Equal(t, "concept2video.jobs", top.Pending)
	assert.Equal(t, "concept2video.jobs.completed", top.Completed)
	assert.Equal(t, "concept2video.jobs.dlq", top.DLQ)
}

func TestConsumer_DrainWaitsForHandlers(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	c := NewConsumer(nil, telemetry.Discard(), "jobs", 2, func(ctx context.Context, _ *Message) error {
		close(started)
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	})

	msg, err := NewMessage(MessageJobRequested, map[string]string{"concept": "x"})
	require.NoError(t, err)
	ack := &ackRecorder{}
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- delivery(t, ack, msg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err = c.drain(ctx, deliveries)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, finished.Load(), "drain returned before its handler finished")
	assert.Equal(t, 1, ack.requeued)
}
