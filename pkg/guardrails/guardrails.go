// Package guardrails checks text against a content-safety policy before it
// reaches a model and before a model's answer reaches the user.
package guardrails

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/germanamz/assistant/pkg/monitoring"
)

// Direction tells a backend whose text it is checking.
type Direction string

const (
	Input  Direction = "INPUT"
	Output Direction = "OUTPUT"
)

// Result is a policy verdict. Valid results never carry violations.
type Result struct {
	Valid      bool     `json:"isValid"`
	Violations []string `json:"violations"`
	Raw        any      `json:"rawResponse,omitempty"`
}

// Backend performs the actual policy check.
type Backend interface {
	Check(ctx context.Context, text string, dir Direction) (Result, error)
}

// BackendError reports that the policy backend itself failed. It is never
// treated as a valid verdict.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("guardrails: %s backend: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Options configure a Checker.
type Options struct {
	Enabled bool
	Monitor monitoring.Recorder
	Logger  *slog.Logger
}

// Checker validates text through one backend chosen at construction. It is
// safe for concurrent use when its backend is.
type Checker struct {
	backend Backend
	name    string
	enabled bool
	monitor monitoring.Recorder
	logger  *slog.Logger
}

// New creates a Checker. name labels the backend in errors and metrics.
func New(name string, backend Backend, opts Options) *Checker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Checker{
		backend: backend,
		name:    name,
		enabled: opts.Enabled && backend != nil,
		monitor: monitoring.OrNop(opts.Monitor),
		logger:  logger,
	}
}

// Disabled returns a Checker that accepts everything without a backend call.
func Disabled() *Checker {
	return New("disabled", nil, Options{})
}

// Enabled reports whether checks reach the backend.
func (c *Checker) Enabled() bool { return c.enabled }

// Validate checks text in the given direction.
func (c *Checker) Validate(ctx context.Context, text string, dir Direction) (Result, error) {
	if !c.enabled {
		return Result{Valid: true}, nil
	}

	res, err := c.backend.Check(ctx, text, dir)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, &BackendError{Backend: c.name, Err: err}
	}

	if res.Valid {
		res.Violations = nil
		return res, nil
	}

	c.logger.InfoContext(ctx, "guardrail violation", "backend", c.name, "direction", dir, "violations", res.Violations)
	_ = c.monitor.Record(monitoring.Metric{
		Type:  monitoring.Usage,
		Name:  monitoring.GuardrailViolation,
		Value: float64(len(res.Violations)),
		Metadata: map[string]any{
			"backend":    c.name,
			"direction":  string(dir),
			"violations": res.Violations,
		},
		Status: monitoring.StatusSuccess,
	})

	return res, nil
}
