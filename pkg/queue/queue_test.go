package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	now := time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC)

	msg, err := NewMessage("forecast", map[string]string{"city": "oslo"}, now)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "forecast", msg.Type)
	assert.JSONEq(t, `{"city":"oslo"}`, string(msg.Payload))
	assert.Equal(t, now, msg.Timestamp)

	raw, err := NewMessage("forecast", []byte(`{"city":"lima"}`), now)
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"lima"}`, string(raw.Payload))

	_, err = NewMessage("forecast", []byte("not json"), now)
	assert.Error(t, err)
}

func TestMessageEnvelopeKeepsPayloadVerbatim(t *testing.T) {
	msg, err := NewMessage("forecast", json.RawMessage(`{"a":1}`), time.Unix(0, 0).UTC())
	require.NoError(t, err)
	b, err := json.Marshal(msg)
	require.NoError(t, err)

	var back Message
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, `{"a":1}`, string(back.Payload))
	assert.Equal(t, msg.ID, back.ID)
}

func TestNextRetry(t *testing.T) {
	cfg := Config{RetryLimit: 2, RetryDelay: 10 * time.Second}
	now := time.Unix(1000, 0)

	at, ok := nextRetry(Message{Attempts: 0}, cfg, now)
	require.True(t, ok)
	assert.Equal(t, now.Add(10*time.Second), at)

	at, ok = nextRetry(Message{Attempts: 1}, cfg, now)
	require.True(t, ok)
	assert.Equal(t, now.Add(20*time.Second), at, "delay grows with attempts")

	_, ok = nextRetry(Message{Attempts: 2}, cfg, now)
	assert.False(t, ok)
}

type stubJob struct{}

func (stubJob) Name() string                         { return "stub" }
func (stubJob) Type() string                         { return "stub" }
func (stubJob) Handle(context.Context, []byte) error { return nil }

func TestQueueDefaultsAndRegistration(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	q := NewRedisQueue(nil, Config{}, client, WithKeyPrefix("test:q"))
	assert.Equal(t, 1, q.config.Workers)
	assert.Equal(t, 10*time.Second, q.config.RetryDelay)
	assert.Equal(t, "test:q:messages", q.queueKey())
	assert.Equal(t, "test:q:retry", q.retryKey())
	assert.Equal(t, "test:q:dlq", q.deadLetterKey())

	_, err := q.Enqueue(context.Background(), "stub", map[string]int{"x": 1})
	assert.ErrorContains(t, err, "no job registered")

	q.RegisterJob(stubJob{})
	q.RegisterJob(stubJob{})
	assert.Len(t, q.jobs, 1)

	// Stop before Start is a no-op.
	assert.NoError(t, q.Stop(context.Background()))
}
