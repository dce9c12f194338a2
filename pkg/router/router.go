// Package router picks a model for a turn when the caller did not pin one.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/models"
)

// SelectionError is returned when no catalog model satisfies the request.
type SelectionError struct {
	Intent Intent
	Budget models.Tier
	Media  []models.Media
}

func (e *SelectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "router: no %s model within %s budget", e.Intent, e.Budget)
	if len(e.Media) > 0 {
		fmt.Fprintf(&b, " accepting %v", e.Media)
	}
	return b.String()
}

// Options configure a Selector.
type Options struct {
	// Preferences lists model ids per intent, tried before the cheapest match.
	Preferences map[Intent][]string
	Logger      *slog.Logger
}

// Selector chooses models from a catalog. It is safe for concurrent use.
type Selector struct {
	catalog *models.Catalog
	prefs   map[Intent][]string
	logger  *slog.Logger
}

// New creates a Selector over catalog.
func New(catalog *models.Catalog, opts Options) *Selector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Selector{catalog: catalog, prefs: opts.Preferences, logger: logger}
}

// Select picks a model for prompt. Models above budget are never chosen.
// Attachments route to a model accepting all of their media; otherwise the
// prompt's intent decides.
func (s *Selector) Select(ctx context.Context, prompt string, attachments []content.Part, budget models.Tier) (models.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return models.Descriptor{}, err
	}

	affordable := s.catalog.Filter(func(d models.Descriptor) bool { return d.Cost <= budget })

	media := mediaOf(attachments)

	var (
		intent     Intent
		candidates []models.Descriptor
	)

	if len(media) > 0 {
		intent = IntentChat
		if slices.Contains(media, models.MediaImage) {
			intent = IntentVision
		} else if slices.Contains(media, models.MediaAudio) {
			intent = IntentSpeech
		}
		for _, d := range affordable {
			if d.Accepts(media...) {
				candidates = append(candidates, d)
			}
		}
	} else {
		intent = Classify(prompt)
		want := intent.Type()
		for _, d := range affordable {
			if d.Is(want) {
				candidates = append(candidates, d)
			}
		}
	}

	if len(candidates) == 0 {
		return models.Descriptor{}, &SelectionError{Intent: intent, Budget: budget, Media: media}
	}

	chosen := s.pick(intent, candidates)
	s.logger.DebugContext(ctx, "model selected", "intent", intent, "model", chosen.ID, "budget", budget.String())

	return chosen, nil
}

// pick returns the first preferred candidate, or else the cheapest one with
// table order breaking ties.
func (s *Selector) pick(intent Intent, candidates []models.Descriptor) models.Descriptor {
	for _, id := range s.prefs[intent] {
		for _, d := range candidates {
			if strings.EqualFold(d.ID, id) {
				return d
			}
		}
	}

	best := candidates[0]
	for _, d := range candidates[1:] {
		if d.Cost < best.Cost {
			best = d
		}
	}
	return best
}

func mediaOf(parts []content.Part) []models.Media {
	var out []models.Media
	for _, p := range parts {
		var m models.Media
		switch p.(type) {
		case content.Image:
			m = models.MediaImage
		case content.Audio:
			m = models.MediaAudio
		default:
			continue
		}
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}
