package queue

import "context"

// Job handles one message type pulled from the queue.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job consumes.
	Type() string

	// Handle processes the raw JSON payload of a message.
	Handle(ctx context.Context, payload []byte) error
}
