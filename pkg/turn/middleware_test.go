package turn_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/germanamz/assistant/pkg/guardrails"
	"github.com/germanamz/assistant/pkg/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeout_SetsDeadline(t *testing.T) {
	h := turn.Timeout(time.Minute)(turn.HandlerFunc(func(ctx context.Context, _ turn.Request) (turn.Result, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return turn.Result{}, nil
	}))

	_, err := h.ProcessTurn(context.Background(), turn.Request{})
	require.NoError(t, err)
}

func TestTimeout_Expires(t *testing.T) {
	h := turn.Timeout(10 * time.Millisecond)(turn.HandlerFunc(func(ctx context.Context, _ turn.Request) (turn.Result, error) {
		<-ctx.Done()
		return turn.Result{}, ctx.Err()
	}))

	_, err := h.ProcessTurn(context.Background(), turn.Request{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 504, turn.HTTPStatus(err))
}

func TestRecovery(t *testing.T) {
	h := turn.Recovery()(turn.HandlerFunc(func(context.Context, turn.Request) (turn.Result, error) {
		panic("kaboom")
	}))

	_, err := h.ProcessTurn(context.Background(), turn.Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	ok := turn.Logger(log)(turn.HandlerFunc(func(context.Context, turn.Request) (turn.Result, error) {
		return turn.Result{}, nil
	}))
	_, err := ok.ProcessTurn(context.Background(), turn.Request{ChatID: "c1"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "turn finished")
	assert.Contains(t, buf.String(), "chat_id=c1")

	buf.Reset()
	blocked := turn.Logger(log)(turn.HandlerFunc(func(context.Context, turn.Request) (turn.Result, error) {
		return turn.Result{Violation: &guardrails.Result{Violations: []string{"S1"}}, Direction: guardrails.Input}, nil
	}))
	_, err = blocked.ProcessTurn(context.Background(), turn.Request{ChatID: "c1"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "turn blocked by guardrail")

	buf.Reset()
	failing := turn.Logger(log)(turn.HandlerFunc(func(context.Context, turn.Request) (turn.Result, error) {
		return turn.Result{}, &turn.EmptyResponseError{Model: "m"}
	}))
	_, err = failing.ProcessTurn(context.Background(), turn.Request{ChatID: "c1"})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "turn failed")
	assert.Contains(t, buf.String(), "status=400")
}

func TestOrchestrator_MiddlewareOrder(t *testing.T) {
	f := newFixture(t, text("ok"))

	var order []string
	mark := func(name string) turn.Middleware {
		return func(next turn.Handler) turn.Handler {
			return turn.HandlerFunc(func(ctx context.Context, req turn.Request) (turn.Result, error) {
				order = append(order, name)
				return next.ProcessTurn(ctx, req)
			})
		}
	}
	f.opts.Middleware = []turn.Middleware{mark("outer"), mark("inner")}

	_, err := f.orchestrator().ProcessTurn(context.Background(), turn.Request{ChatID: "c1", Input: "hi", Model: "tooly"})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestOrchestrator_RecoveryAroundSenderPanic(t *testing.T) {
	f := newFixture(t, text("ok"))
	f.sender.hook = func(int) { panic("sender exploded") }
	f.opts.Middleware = []turn.Middleware{turn.Recovery()}

	_, err := f.orchestrator().ProcessTurn(context.Background(), turn.Request{ChatID: "c1", Input: "hi", Model: "tooly"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
	assert.Contains(t, err.Error(), "sender exploded")
}
