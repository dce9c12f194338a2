package main

import (
	"slices"

	"github.com/charmbracelet/huh"
	"github.com/germanamz/assistant/pkg/models"
	"gopkg.in/yaml.v3"
)

// wizardConfig collects the answers of the init wizard.
type wizardConfig struct {
	Providers    []string
	DefaultModel string
	Guardrails   string // "", "classifier" or "bedrock".
	HistoryDir   string // Empty keeps history in memory.
	Weather      bool
	Media        bool
}

// providerTemplate is the YAML a provider starts with. Credentials are env
// var references so the file can be committed.
type providerTemplate struct {
	Kind      string `yaml:"kind"`
	APIKey    string `yaml:"api_key,omitempty"`
	AccountID string `yaml:"account_id,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Region    string `yaml:"region,omitempty"`
}

//nolint:gosec // env var reference templates, not hardcoded secrets
var providerTemplates = map[models.Provider]providerTemplate{
	models.Anthropic:  {APIKey: "${ANTHROPIC_API_KEY}"},
	models.Workers:    {AccountID: "${CLOUDFLARE_ACCOUNT_ID}", APIKey: "${CLOUDFLARE_API_TOKEN}"},
	models.Grok:       {APIKey: "${GROK_API_KEY}"},
	models.OpenAI:     {APIKey: "${OPENAI_API_KEY}"},
	models.Mistral:    {APIKey: "${MISTRAL_API_KEY}"},
	models.Perplexity: {APIKey: "${PERPLEXITY_API_KEY}"},
	models.Google:     {APIKey: "${GEMINI_API_KEY}"},
	models.Bedrock:    {AccessKey: "${AWS_ACCESS_KEY_ID}", SecretKey: "${AWS_SECRET_ACCESS_KEY}", Region: "us-east-1"},
	models.Replicate:  {APIKey: "${REPLICATE_API_TOKEN}"},
	models.Ark:        {APIKey: "${ARK_API_KEY}"},
}

var providerLabels = map[models.Provider]string{
	models.Anthropic:  "Anthropic",
	models.Workers:    "Cloudflare Workers AI",
	models.Grok:       "Grok",
	models.OpenAI:     "OpenAI",
	models.Mistral:    "Mistral",
	models.Perplexity: "Perplexity",
	models.Google:     "Google Gemini",
	models.Bedrock:    "AWS Bedrock",
	models.Replicate:  "Replicate",
	models.Ark:        "Volcengine Ark",
}

func runWizard() ([]byte, error) {
	var cfg wizardConfig

	providerOpts := make([]huh.Option[string], 0, len(models.Providers()))
	for _, p := range models.Providers() {
		providerOpts = append(providerOpts, huh.NewOption(providerLabels[p], string(p)))
	}

	if err := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Providers").
			Options(providerOpts...).
			Validate(func(s []string) error {
				if len(s) == 0 {
					return errNoProviders
				}
				return nil
			}).
			Value(&cfg.Providers),
	)).Run(); err != nil {
		return nil, err
	}

	modelOpts := []huh.Option[string]{huh.NewOption("Choose per message", "")}
	for _, d := range availableModels(cfg.Providers) {
		modelOpts = append(modelOpts, huh.NewOption(d.ID+" ("+d.Cost.String()+")", d.ID))
	}

	guardOpts := []huh.Option[string]{huh.NewOption("Off", ""), huh.NewOption("AWS Bedrock guardrail", "bedrock")}
	if hasProvider(cfg.Providers, models.Workers) {
		guardOpts = append(guardOpts, huh.NewOption("Llama Guard on Workers AI", "classifier"))
	}

	var persist bool
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Default model").Options(modelOpts...).Value(&cfg.DefaultModel),
			huh.NewSelect[string]().Title("Content guardrails").Options(guardOpts...).Value(&cfg.Guardrails),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Keep history on disk?").Value(&persist),
			huh.NewConfirm().Title("Enable the weather tool?").Value(&cfg.Weather),
		),
	).Run(); err != nil {
		return nil, err
	}

	if persist {
		cfg.HistoryDir = ".assistant/history"
		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("History directory").Value(&cfg.HistoryDir),
		)).Run(); err != nil {
			return nil, err
		}
	}

	if hasProvider(cfg.Providers, models.Replicate) {
		if err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().Title("Enable image, video and music tools?").Value(&cfg.Media),
		)).Run(); err != nil {
			return nil, err
		}
	}

	return marshalWizardConfig(cfg)
}

func availableModels(providers []string) []models.Descriptor {
	kinds := make([]models.Provider, len(providers))
	for i, p := range providers {
		kinds[i] = models.Provider(p)
	}
	return models.Builtin().Restrict(kinds...).Filter(func(d models.Descriptor) bool {
		return d.Is(models.Chat)
	})
}

func hasProvider(providers []string, p models.Provider) bool {
	return slices.Contains(providers, string(p))
}

// wizardYAML mirrors the engine config keys the wizard writes.
type wizardYAML struct {
	DefaultModel string             `yaml:"default_model,omitempty"`
	Providers    []providerTemplate `yaml:"providers"`
	Middleware   []map[string]any   `yaml:"middleware"`
	Guardrails   map[string]any     `yaml:"guardrails,omitempty"`
	History      map[string]string  `yaml:"history,omitempty"`
	Tools        map[string]any     `yaml:"tools,omitempty"`
}

func marshalWizardConfig(cfg wizardConfig) ([]byte, error) {
	out := wizardYAML{
		DefaultModel: cfg.DefaultModel,
		Middleware: []map[string]any{
			{"kind": "recovery"},
			{"kind": "logger"},
			{"kind": "timeout", "params": map[string]any{"duration": "2m"}},
		},
	}

	for _, p := range cfg.Providers {
		t := providerTemplates[models.Provider(p)]
		t.Kind = p
		out.Providers = append(out.Providers, t)
	}

	switch cfg.Guardrails {
	case "classifier":
		out.Guardrails = map[string]any{"enabled": true, "backend": "classifier"}
	case "bedrock":
		out.Guardrails = map[string]any{
			"enabled": true,
			"backend": "bedrock",
			"bedrock": map[string]string{
				"access_key":   "${AWS_ACCESS_KEY_ID}",
				"secret_key":   "${AWS_SECRET_ACCESS_KEY}",
				"guardrail_id": "${BEDROCK_GUARDRAIL_ID}",
				"region":       "us-east-1",
			},
		}
	}

	if cfg.HistoryDir != "" {
		out.History = map[string]string{"backend": "file", "dir": cfg.HistoryDir}
	}

	if cfg.Weather || cfg.Media {
		tools := map[string]any{}
		if cfg.Weather {
			tools["weather_api_key"] = "${OPENWEATHER_API_KEY}"
		}
		if cfg.Media {
			tools["media"] = true
		}
		out.Tools = tools
	}

	return yaml.Marshal(out)
}
