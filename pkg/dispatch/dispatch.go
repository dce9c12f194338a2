// Package dispatch resolves a model to the sender of its provider and sends
// requests through it, timing and recording every call.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/monitoring"
)

// ErrNotConfigured is wrapped in the ProviderError returned for a model whose
// provider has no registered sender.
var ErrNotConfigured = errors.New("provider not configured")

// Route is a resolved model and the sender that serves it.
type Route struct {
	Model  models.Descriptor
	Sender modeladapter.Sender
}

// Options configure a Dispatcher.
type Options struct {
	Monitor monitoring.Recorder
	Usage   *usage.Tracker
	Logger  *slog.Logger
}

// Dispatcher maps provider tags to senders. It never retries. It is safe for
// concurrent use.
type Dispatcher struct {
	catalog *models.Catalog

	mu      sync.RWMutex
	senders map[models.Provider]modeladapter.Sender

	monitor monitoring.Recorder
	usage   *usage.Tracker
	logger  *slog.Logger
}

// New creates a Dispatcher over catalog.
func New(catalog *models.Catalog, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		catalog: catalog,
		senders: make(map[models.Provider]modeladapter.Sender),
		monitor: monitoring.OrNop(opts.Monitor),
		usage:   opts.Usage,
		logger:  logger,
	}
}

// Register binds a provider tag to its sender, replacing any previous one.
func (d *Dispatcher) Register(p models.Provider, s modeladapter.Sender) error {
	if !p.Valid() {
		return fmt.Errorf("dispatch: unknown provider %q", p)
	}

	d.mu.Lock()
	d.senders[p] = s
	d.mu.Unlock()

	return nil
}

// Configured reports whether p has a sender.
func (d *Dispatcher) Configured(p models.Provider) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.senders[p]
	return ok
}

// Catalog returns the model table the dispatcher resolves against.
func (d *Dispatcher) Catalog() *models.Catalog { return d.catalog }

// Resolve looks up a model id or alias. Unknown names yield
// *models.UnknownModelError; nothing is sent.
func (d *Dispatcher) Resolve(model string) (Route, error) {
	desc, err := d.catalog.Lookup(model)
	if err != nil {
		return Route{}, err
	}

	return d.Route(desc)
}

// Route binds an already resolved descriptor to its sender.
func (d *Dispatcher) Route(desc models.Descriptor) (Route, error) {
	d.mu.RLock()
	s, ok := d.senders[desc.Provider]
	d.mu.RUnlock()

	if !ok {
		return Route{}, &modeladapter.ProviderError{Provider: string(desc.Provider), Err: ErrNotConfigured}
	}

	return Route{Model: desc, Sender: s}, nil
}

// Send sends req through the route with the upstream model name filled in.
// The call is timed and recorded as ai_provider_response; recording never
// fails the send.
func (d *Dispatcher) Send(ctx context.Context, r Route, req modeladapter.Request) (modeladapter.Response, error) {
	req.Model = r.Model.Upstream

	start := time.Now()
	resp, err := r.Sender.Send(ctx, req)
	latency := time.Since(start)

	meta := map[string]any{
		"provider":  string(r.Model.Provider),
		"model":     r.Model.ID,
		"latencyMs": latency.Milliseconds(),
		"settings":  req.Params.Settings(),
	}

	if err != nil {
		var perr *modeladapter.ProviderError
		if !errors.As(err, &perr) && ctx.Err() == nil {
			err = &modeladapter.ProviderError{Provider: string(r.Model.Provider), Err: err}
		}

		_ = d.monitor.Record(monitoring.Metric{
			Type:     monitoring.Error,
			Name:     monitoring.ProviderResponse,
			Value:    float64(latency.Milliseconds()),
			Metadata: meta,
			Status:   monitoring.StatusError,
			Error:    err.Error(),
		})
		d.logger.WarnContext(ctx, "provider call failed", "provider", r.Model.Provider, "model", r.Model.ID, "error", err)

		return modeladapter.Response{}, err
	}

	meta["tokenUsage"] = map[string]int{
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	}
	if resp.LogID != "" {
		meta["logId"] = resp.LogID
	}

	_ = d.monitor.Record(monitoring.Metric{
		Type:     monitoring.Performance,
		Name:     monitoring.ProviderResponse,
		Value:    float64(latency.Milliseconds()),
		Metadata: meta,
		Status:   monitoring.StatusSuccess,
	})

	if d.usage != nil {
		d.usage.Add(r.Model.ID, resp.Usage)
	}

	return resp, nil
}
