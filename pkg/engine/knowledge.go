package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/dispatch"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/retrieval"
)

// Ingest adds a document to the knowledge base used for retrieval. It
// returns retrieval.ErrIngestDisabled when no data source is configured.
func (e *Engine) Ingest(ctx context.Context, doc retrieval.IngestDocument) (retrieval.Ingested, error) {
	if e.ingester == nil {
		return retrieval.Ingested{}, retrieval.ErrIngestDisabled
	}
	return e.ingester.Ingest(ctx, doc)
}

// CanIngest reports whether a knowledge base data source is configured.
func (e *Engine) CanIngest() bool { return e.ingester != nil }

// summaryRoute picks the model the summarising tools run on.
func (e *Engine) summaryRoute() (dispatch.Route, error) {
	for _, name := range []string{e.cfg.Tools.SummaryModel, e.cfg.DefaultModel} {
		if name != "" {
			return e.dispatcher.Resolve(name)
		}
	}

	chat := e.catalog.Filter(func(d models.Descriptor) bool { return d.Is(models.Chat) })
	if len(chat) == 0 {
		return dispatch.Route{}, errors.New("engine: no chat model to summarise with")
	}
	slices.SortStableFunc(chat, func(a, b models.Descriptor) int { return int(a.Cost) - int(b.Cost) })

	return e.dispatcher.Route(chat[0])
}

// Summarize implements builtin.Summarizer on the dispatcher, outside any
// conversation history.
func (e *Engine) Summarize(ctx context.Context, instructions, text string) (string, error) {
	route, err := e.summaryRoute()
	if err != nil {
		return "", err
	}

	resp, err := e.dispatcher.Send(ctx, route, modeladapter.Request{
		System:   instructions,
		Messages: []message.Message{message.NewText(role.User, text)},
	})
	if err != nil {
		return "", fmt.Errorf("engine: summarise with %s: %w", route.Model.ID, err)
	}

	return strings.TrimSpace(resp.Text), nil
}
