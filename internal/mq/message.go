package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType tells consumers how to read Payload.
type MessageType string

const (
	MessageJobRequested MessageType = "job.requested"
	MessageJobCompleted MessageType = "job.completed"
)

// Message is the envelope of every published message.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage encodes payload into a fresh envelope.
func NewMessage(t MessageType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// JobCompleted is published after a requested job finishes.
type JobCompleted struct {
	RequestID  string `json:"request_id"`
	JobID      string `json:"job_id"`
	Stage      string `json:"stage"`
	OutputPath string `json:"output_path,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ParsePayload decodes the payload of msg into T.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return out, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return out, nil
}
