package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "WattWise/pkg/logger"
)

func TestHookChainOrder(t *testing.T) {
	var calls []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				calls = append(calls, "before:"+name)
				return ctx, km, data, nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				calls = append(calls, "after:"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))

	ctx, km, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("{}"))
	require.NoError(t, err)
	chain.AfterHandle(ctx, "t", km, data, nil)
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, calls)
}

func TestHookChainRecoversPanics(t *testing.T) {
	var seen error
	chain := NewHookChain(
		HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { seen = err }},
		HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		}},
	)
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var herr *HookError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, "ERR_PANIC", herr.Code)
	assert.Equal(t, err, seen)
}

func TestJSONPayloadHook(t *testing.T) {
	h := JSONPayloadHook()
	_, _, _, err := h.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(`{"city":"oslo"}`))
	assert.NoError(t, err)

	_, _, _, err = h.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(`[1,2]`))
	var herr *HookError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, "ERR_VALIDATION", herr.Code)
}

func TestLoggingHookStampsContext(t *testing.T) {
	h := NewLoggingHook(applogger.Nop())
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}

	ctx, _, _, err := h.BeforeHandle(context.Background(), "t", km, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceID(ctx))
	start, ok := StartTime(ctx)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), start, time.Second)

	h.AfterHandle(ctx, "t", km, nil, nil)
	h.OnError(ctx, "t", km, nil, errors.New("x"))
}
