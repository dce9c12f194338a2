package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/germanamz/assistant/pkg/dispatch"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T, mon *monitoring.Monitor, tr *usage.Tracker) *dispatch.Dispatcher {
	t.Helper()

	c, err := models.NewCatalog(
		models.Descriptor{ID: "fast", Aliases: []string{"f"}, Provider: models.OpenAI, Upstream: "gpt-fast", Types: []models.Type{models.Chat}},
		models.Descriptor{ID: "other", Provider: models.Mistral, Upstream: "mistral-x", Types: []models.Type{models.Chat}},
	)
	require.NoError(t, err)

	return dispatch.New(c, dispatch.Options{Monitor: mon, Usage: tr})
}

func TestResolveAliasSameRoute(t *testing.T) {
	d := newDispatcher(t, nil, nil)
	require.NoError(t, d.Register(models.OpenAI, modeladapter.SenderFunc(func(context.Context, modeladapter.Request) (modeladapter.Response, error) {
		return modeladapter.Response{}, nil
	})))

	a, err := d.Resolve("fast")
	require.NoError(t, err)
	b, err := d.Resolve("F")
	require.NoError(t, err)

	assert.Equal(t, a.Model.ID, b.Model.ID)
	assert.Equal(t, models.OpenAI, b.Model.Provider)
}

func TestResolveUnknown(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	_, err := d.Resolve("nope")

	var uerr *models.UnknownModelError
	assert.True(t, errors.As(err, &uerr))
}

func TestResolveNotConfigured(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	_, err := d.Resolve("other")

	var perr *modeladapter.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "mistral", perr.Provider)
	assert.ErrorIs(t, err, dispatch.ErrNotConfigured)
	assert.False(t, d.Configured(models.Mistral))
}

func TestRegisterRejectsUnknownProvider(t *testing.T) {
	d := newDispatcher(t, nil, nil)
	assert.Error(t, d.Register("acme", nil))
}

func TestSendRecordsSuccess(t *testing.T) {
	mon := monitoring.New(monitoring.Options{})
	var tr usage.Tracker
	d := newDispatcher(t, mon, &tr)

	var gotModel string
	require.NoError(t, d.Register(models.OpenAI, modeladapter.SenderFunc(func(_ context.Context, req modeladapter.Request) (modeladapter.Response, error) {
		gotModel = req.Model
		return modeladapter.Response{Text: "hi", Usage: usage.TokenCount{InputTokens: 3, OutputTokens: 2}, LogID: "log-1"}, nil
	})))

	route, err := d.Resolve("fast")
	require.NoError(t, err)

	temp := 0.2
	resp, err := d.Send(context.Background(), route, modeladapter.Request{Params: modeladapter.Params{Temperature: &temp}})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)
	assert.Equal(t, "gpt-fast", gotModel)

	metrics := mon.ByName(monitoring.ProviderResponse)
	require.Len(t, metrics, 1)
	assert.Equal(t, monitoring.Performance, metrics[0].Type)
	assert.Equal(t, "openai", metrics[0].Metadata["provider"])
	assert.Equal(t, "log-1", metrics[0].Metadata["logId"])
	assert.Equal(t, map[string]any{"temperature": 0.2}, metrics[0].Metadata["settings"])

	assert.Equal(t, usage.TokenCount{InputTokens: 3, OutputTokens: 2}, tr.Model("fast"))
}

func TestSendRecordsFailureWithoutRetry(t *testing.T) {
	mon := monitoring.New(monitoring.Options{})
	d := newDispatcher(t, mon, nil)

	calls := 0
	require.NoError(t, d.Register(models.OpenAI, modeladapter.SenderFunc(func(context.Context, modeladapter.Request) (modeladapter.Response, error) {
		calls++
		return modeladapter.Response{}, errors.New("connection reset")
	})))

	route, err := d.Resolve("fast")
	require.NoError(t, err)

	_, err = d.Send(context.Background(), route, modeladapter.Request{})

	var perr *modeladapter.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "openai", perr.Provider)
	assert.Equal(t, 1, calls)

	metrics := mon.ByType(monitoring.Error)
	require.Len(t, metrics, 1)
	assert.Equal(t, monitoring.StatusError, metrics[0].Status)
	assert.Contains(t, metrics[0].Error, "connection reset")
}

func TestSendKeepsProviderError(t *testing.T) {
	d := newDispatcher(t, nil, nil)

	orig := &modeladapter.ProviderError{Provider: "openai", StatusCode: 429}
	require.NoError(t, d.Register(models.OpenAI, modeladapter.SenderFunc(func(context.Context, modeladapter.Request) (modeladapter.Response, error) {
		return modeladapter.Response{}, orig
	})))

	route, _ := d.Resolve("fast")
	_, err := d.Send(context.Background(), route, modeladapter.Request{})

	assert.Same(t, orig, err)
}

func TestSendWithNilMonitor(t *testing.T) {
	d := newDispatcher(t, (*monitoring.Monitor)(nil), nil)
	require.NoError(t, d.Register(models.OpenAI, modeladapter.SenderFunc(func(context.Context, modeladapter.Request) (modeladapter.Response, error) {
		return modeladapter.Response{}, errors.New("upstream down")
	})))

	route, err := d.Resolve("fast")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		_, err = d.Send(context.Background(), route, modeladapter.Request{})
	})
	assert.Error(t, err)
}
