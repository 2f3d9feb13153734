package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enqueuer accepts work for asynchronous processing and returns the message id.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// Config contains the configuration for the queue.
type Config struct {
	Workers     int           // number of workers
	RetryLimit  int           // retries before a message is dead-lettered
	RetryDelay  time.Duration // base delay, multiplied by the attempt number
	PollTimeout time.Duration // blocking pop timeout per worker iteration
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
	LastError string          `json:"last_error,omitempty"`
}

// NewMessage wraps payload in an envelope. []byte and json.RawMessage
// payloads are stored as is, anything else is JSON-encoded.
func NewMessage(msgType string, payload interface{}, now time.Time) (Message, error) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("marshal payload: %w", err)
		}
		raw = b
	}
	if !json.Valid(raw) {
		return Message{}, fmt.Errorf("payload for %s is not valid JSON", msgType)
	}
	return Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: now,
	}, nil
}

// nextRetry reports when a failed message should run again, or false when
// it has used up its retries.
func nextRetry(msg Message, cfg Config, now time.Time) (time.Time, bool) {
	if msg.Attempts >= cfg.RetryLimit {
		return time.Time{}, false
	}
	return now.Add(time.Duration(msg.Attempts+1) * cfg.RetryDelay), true
}
