package turn

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Handler processes one turn.
type Handler interface {
	ProcessTurn(ctx context.Context, req Request) (Result, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) (Result, error)

// ProcessTurn calls the underlying function.
func (f HandlerFunc) ProcessTurn(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Middleware wraps a Handler, returning a new Handler with added behaviour.
type Middleware func(next Handler) Handler

// --- Timeout middleware ---

// Timeout returns a Middleware that bounds every turn with a deadline.
func Timeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req Request) (Result, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			return next.ProcessTurn(ctx, req)
		})
	}
}

// --- Recovery middleware ---

// Recovery returns a Middleware that converts panics into errors.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req Request) (res Result, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("turn panicked: %v", r)
				}
			}()

			return next.ProcessTurn(ctx, req)
		})
	}
}

// --- Logger middleware ---

// Logger returns a Middleware that logs turn start, duration and outcome.
func Logger(log *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req Request) (Result, error) {
			log.InfoContext(ctx, "turn started", "chat_id", req.ChatID, "mode", req.Mode)

			start := time.Now()
			res, err := next.ProcessTurn(ctx, req)
			duration := time.Since(start)

			switch {
			case err != nil:
				log.ErrorContext(ctx, "turn failed",
					"chat_id", req.ChatID,
					"duration", duration,
					"status", HTTPStatus(err),
					"error", err,
				)
			case res.Violation != nil:
				log.InfoContext(ctx, "turn blocked by guardrail",
					"chat_id", req.ChatID,
					"direction", res.Direction,
					"violations", res.Violation.Violations,
				)
			default:
				log.InfoContext(ctx, "turn finished",
					"chat_id", req.ChatID,
					"model", res.Model.ID,
					"messages", len(res.Messages),
					"duration", duration,
				)
			}

			return res, err
		})
	}
}
