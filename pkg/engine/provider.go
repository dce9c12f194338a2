package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/providers/anthropic"
	"github.com/germanamz/assistant/pkg/providers/ark"
	"github.com/germanamz/assistant/pkg/providers/bedrock"
	"github.com/germanamz/assistant/pkg/providers/gemini"
	"github.com/germanamz/assistant/pkg/providers/openai"
	"github.com/germanamz/assistant/pkg/providers/replicate"
	"github.com/germanamz/assistant/pkg/providers/workers"
)

// AnthropicBaseURL is the direct Anthropic endpoint, used when neither a
// base URL nor a gateway account is configured.
const AnthropicBaseURL = "https://api.anthropic.com"

// ProviderFactory creates a Sender from a ProviderConfig.
type ProviderFactory func(ctx context.Context, cfg ProviderConfig) (modeladapter.Sender, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[models.Provider]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories[models.Anthropic] = newAnthropic
		factories[models.Workers] = newWorkers
		factories[models.OpenAI] = newOpenAICompatible(openai.OpenAIBaseURL, false)
		factories[models.Grok] = newOpenAICompatible(openai.GrokBaseURL, false)
		factories[models.Mistral] = newOpenAICompatible(openai.MistralBaseURL, false)
		factories[models.Perplexity] = newOpenAICompatible(openai.PerplexityBaseURL, true)
		factories[models.Google] = newGemini
		factories[models.Bedrock] = newBedrock
		factories[models.Replicate] = newReplicate
		factories[models.Ark] = newArk
	})
}

// RegisterProvider replaces the factory used for a provider tag. It can be
// called before New to swap in a custom sender.
func RegisterProvider(kind models.Provider, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// getFactory returns the factory for the given kind.
func getFactory(kind models.Provider) (ProviderFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newAnthropic(_ context.Context, cfg ProviderConfig) (modeladapter.Sender, error) {
	baseURL := cfg.BaseURL
	switch {
	case baseURL != "":
	case cfg.AccountID != "":
		baseURL = fmt.Sprintf("%s/v1/%s/%s/anthropic", workers.DefaultBaseURL, cfg.AccountID, workers.GatewayID)
	default:
		baseURL = AnthropicBaseURL
	}

	return anthropic.New(baseURL, cfg.APIKey), nil
}

func newWorkers(_ context.Context, cfg ProviderConfig) (modeladapter.Sender, error) {
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}

	a := workers.New(cfg.BaseURL, cfg.AccountID, cfg.APIKey)
	a.CacheTTL = cfg.CacheTTL

	return a, nil
}

func newOpenAICompatible(defaultBaseURL string, citations bool) ProviderFactory {
	return func(_ context.Context, cfg ProviderConfig) (modeladapter.Sender, error) {
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURL
		}

		return openai.New(openai.Config{
			Provider:  string(cfg.Kind),
			APIKey:    cfg.APIKey,
			BaseURL:   baseURL,
			Citations: citations,
		}), nil
	}
}

func newGemini(ctx context.Context, cfg ProviderConfig) (modeladapter.Sender, error) {
	return gemini.New(ctx, cfg.APIKey)
}

func newBedrock(_ context.Context, cfg ProviderConfig) (modeladapter.Sender, error) {
	return bedrock.New(bedrock.Config{
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Region:    cfg.Region,
	})
}

func newReplicate(_ context.Context, cfg ProviderConfig) (modeladapter.Sender, error) {
	return replicate.New(cfg.BaseURL, cfg.APIKey), nil
}

func newArk(_ context.Context, cfg ProviderConfig) (modeladapter.Sender, error) {
	return ark.New(ark.Config{
		BaseURL:   cfg.BaseURL,
		Region:    cfg.Region,
		APIKey:    cfg.APIKey,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	})
}

// buildSender creates a Sender from a ProviderConfig using the registered
// factory for its Kind.
func buildSender(ctx context.Context, cfg ProviderConfig) (modeladapter.Sender, error) {
	factory, ok := getFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("engine: unknown provider kind %q", cfg.Kind)
	}

	return factory(ctx, cfg)
}
