package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/germanamz/assistant/pkg/turn"
)

// MiddlewareFactory constructs a turn middleware from its YAML params.
type MiddlewareFactory func(params map[string]any, logger *slog.Logger) (turn.Middleware, error)

// middlewareFactories maps middleware kind strings to their constructors.
var middlewareFactories = map[string]MiddlewareFactory{
	"timeout":  buildTimeout,
	"recovery": buildRecovery,
	"logger":   buildLogger,
}

// defaultMiddleware is used when the config lists none.
var defaultMiddleware = []MiddlewareConfig{{Kind: "recovery"}, {Kind: "logger"}}

// buildMiddleware constructs the turn middleware chain, outermost first.
func buildMiddleware(mcs []MiddlewareConfig, logger *slog.Logger) ([]turn.Middleware, error) {
	if len(mcs) == 0 {
		mcs = defaultMiddleware
	}

	mws := make([]turn.Middleware, 0, len(mcs))
	for i, mc := range mcs {
		factory, ok := middlewareFactories[mc.Kind]
		if !ok {
			return nil, fmt.Errorf("engine: middleware[%d]: unknown kind %q", i, mc.Kind)
		}

		mw, err := factory(mc.Params, logger)
		if err != nil {
			return nil, fmt.Errorf("engine: middleware[%d] (%s): %w", i, mc.Kind, err)
		}

		mws = append(mws, mw)
	}

	return mws, nil
}

// buildTimeout creates a Timeout middleware. The duration param accepts a
// duration string or a number of seconds.
func buildTimeout(params map[string]any, _ *slog.Logger) (turn.Middleware, error) {
	v, ok := params["duration"]
	if !ok {
		return nil, fmt.Errorf("duration is required")
	}

	var d time.Duration
	switch t := v.(type) {
	case string:
		var err error
		d, err = time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
	case int:
		d = time.Duration(t) * time.Second
	case float64:
		d = time.Duration(t * float64(time.Second))
	default:
		return nil, fmt.Errorf("duration must be a string or number, got %T", v)
	}

	if d <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}

	return turn.Timeout(d), nil
}

func buildRecovery(map[string]any, *slog.Logger) (turn.Middleware, error) {
	return turn.Recovery(), nil
}

func buildLogger(_ map[string]any, logger *slog.Logger) (turn.Middleware, error) {
	return turn.Logger(logger), nil
}
