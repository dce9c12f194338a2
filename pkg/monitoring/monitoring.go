// Package monitoring records performance, error and usage metrics. Recording
// never blocks the caller: metrics are kept in a bounded in-memory buffer and
// forwarded to sinks by a background drain loop, dropping on overflow.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Type classifies a metric.
type Type string

const (
	Performance Type = "performance"
	Error       Type = "error"
	Usage       Type = "usage"
)

// Status is the outcome the metric describes.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Well-known metric names.
const (
	ProviderResponse   = "ai_provider_response"
	GuardrailViolation = "guardrail_violation"
	UserUsage          = "user_usage"
)

// ErrInvalidMetric is returned by Record for metrics missing a name or with
// an unknown type.
var ErrInvalidMetric = errors.New("monitoring: invalid metric")

// Metric is a single data point.
type Metric struct {
	TraceID   string         `json:"traceId"`
	Timestamp time.Time      `json:"timestamp"`
	Type      Type           `json:"type"`
	Name      string         `json:"name"`
	Value     float64        `json:"value"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Status    Status         `json:"status"`
	Error     string         `json:"error,omitempty"`
}

// Recorder is the write side of a Monitor. Components depend on it so tests
// can pass a Monitor or nothing at all.
type Recorder interface {
	Record(m Metric) error
}

// Sink receives drained metrics.
type Sink interface {
	Write(ctx context.Context, m Metric) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, m Metric) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, m Metric) error { return f(ctx, m) }

// Options configure a Monitor.
type Options struct {
	Capacity int // Max metrics kept for queries; oldest are evicted. Default 1000.
	Buffer   int // Sink channel size; metrics beyond it are dropped. Default 256.
	Sinks    []Sink
	Logger   *slog.Logger
}

// Monitor stores metrics and forwards them to sinks. It is safe for
// concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	metrics  []Metric // ring of at most capacity entries
	next     int      // slot the next metric overwrites once the ring is full
	capacity int

	ch      chan Metric
	sinks   []Sink
	logger  *slog.Logger
	dropped atomic.Int64
}

// New creates a Monitor. Call Run to start forwarding to sinks.
func New(opts Options) *Monitor {
	if opts.Capacity <= 0 {
		opts.Capacity = 1000
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Monitor{
		capacity: opts.Capacity,
		ch:       make(chan Metric, opts.Buffer),
		sinks:    opts.Sinks,
		logger:   opts.Logger,
	}
}

// NewTraceID returns a fresh trace id.
func NewTraceID() string { return uuid.NewString() }

// Record validates m, fills a missing trace id and timestamp, stores it and
// queues it for the sinks. A nil Monitor discards everything.
func (mon *Monitor) Record(m Metric) error {
	if mon == nil {
		return nil
	}
	if err := validate(m); err != nil {
		mon.logger.Warn("dropping invalid metric", "name", m.Name, "type", m.Type, "error", err)
		return err
	}
	if m.TraceID == "" {
		m.TraceID = NewTraceID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.Status == "" {
		m.Status = StatusSuccess
	}

	mon.mu.Lock()
	if len(mon.metrics) < mon.capacity {
		mon.metrics = append(mon.metrics, m)
	} else {
		mon.metrics[mon.next] = m
		mon.next = (mon.next + 1) % mon.capacity
	}
	mon.mu.Unlock()

	select {
	case mon.ch <- m:
	default:
		mon.dropped.Add(1)
	}

	return nil
}

func validate(m Metric) error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMetric)
	}
	switch m.Type {
	case Performance, Error, Usage:
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMetric, m.Type)
	}
}

// Run forwards queued metrics to the sinks until ctx is done, then flushes
// what is already queued. Sink errors are logged.
func (mon *Monitor) Run(ctx context.Context) {
	if mon == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case m := <-mon.ch:
			mon.write(ctx, m)
		case <-ctx.Done():
			for {
				select {
				case m := <-mon.ch:
					mon.write(context.WithoutCancel(ctx), m)
				default:
					return
				}
			}
		}
	}
}

func (mon *Monitor) write(ctx context.Context, m Metric) {
	for _, s := range mon.sinks {
		if err := s.Write(ctx, m); err != nil {
			mon.logger.Warn("metric sink failed", "name", m.Name, "error", err)
		}
	}
}

// Metrics returns a copy of the stored metrics, oldest first.
func (mon *Monitor) Metrics() []Metric {
	return mon.filter(func(Metric) bool { return true })
}

// ByType returns the stored metrics of type t.
func (mon *Monitor) ByType(t Type) []Metric {
	return mon.filter(func(m Metric) bool { return m.Type == t })
}

// ByName returns the stored metrics named name.
func (mon *Monitor) ByName(name string) []Metric {
	return mon.filter(func(m Metric) bool { return m.Name == name })
}

// Clear removes all stored metrics.
func (mon *Monitor) Clear() {
	if mon == nil {
		return
	}
	mon.mu.Lock()
	mon.metrics = nil
	mon.next = 0
	mon.mu.Unlock()
}

// Dropped returns how many metrics missed the sinks because the buffer was full.
func (mon *Monitor) Dropped() int64 {
	if mon == nil {
		return 0
	}
	return mon.dropped.Load()
}

func (mon *Monitor) filter(keep func(Metric) bool) []Metric {
	if mon == nil {
		return []Metric{}
	}
	mon.mu.RLock()
	defer mon.mu.RUnlock()

	out := make([]Metric, 0, len(mon.metrics))
	n := len(mon.metrics)
	for i := range n {
		m := mon.metrics[(mon.next+i)%n]
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// Nop is a Recorder that discards everything.
type Nop struct{}

// Record does nothing.
func (Nop) Record(Metric) error { return nil }

// OrNop returns r, or Nop when r is nil or a nil *Monitor.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	if mon, ok := r.(*Monitor); ok && mon == nil {
		return Nop{}
	}
	return r
}
