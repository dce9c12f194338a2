// Package builtin provides the tools the assistant ships with: current
// weather, web content extraction, article summaries and Replicate-backed
// image, video and music generation.
package builtin

import (
	"context"
	"net/http"

	"github.com/germanamz/assistant/pkg/providers/replicate"
	"github.com/germanamz/assistant/pkg/retrieval"
	"github.com/germanamz/assistant/pkg/tools/toolbox"
)

// Predictor starts Replicate predictions.
type Predictor interface {
	Predict(ctx context.Context, version string, input any, webhook string) (replicate.Prediction, error)
}

// Config selects which tools are available. Tools whose credentials are
// missing are not registered.
type Config struct {
	WeatherAPIKey  string
	WeatherBaseURL string // Defaults to DefaultWeatherBaseURL.
	HTTPClient     *http.Client
	Predictor      Predictor

	// Extract registers extract_content. Summaries need Summarizer and
	// storing pages needs Ingester.
	Extract    bool
	Summarizer Summarizer // Also registers summarise_article.
	Ingester   retrieval.Ingester
}

// New builds a toolbox with every configured built-in tool.
func New(cfg Config, opts ...toolbox.Options) *toolbox.ToolBox {
	tb := toolbox.New(opts...)

	if cfg.WeatherAPIKey != "" {
		w := NewWeather(cfg.WeatherBaseURL, cfg.WeatherAPIKey, cfg.HTTPClient)
		tb.Register(w.Tool())
	}

	if cfg.Extract {
		tb.Register(NewExtractor(cfg.HTTPClient, cfg.Summarizer, cfg.Ingester).Tool())
	}

	if cfg.Summarizer != nil {
		tb.Register(NewSummariser(cfg.Summarizer).Tool())
	}

	if cfg.Predictor != nil {
		for _, m := range mediaTools {
			tb.Register(m.tool(cfg.Predictor))
		}
	}

	return tb
}
