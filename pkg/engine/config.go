package engine

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/germanamz/assistant/pkg/guardrails"
	"github.com/germanamz/assistant/pkg/history"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/retrieval"
	"github.com/germanamz/assistant/pkg/tools/mcpclient"
	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	Logger *slog.Logger `yaml:"-"` // Set by the caller, not from YAML.

	DefaultModel  string                   `yaml:"default_model"`
	Platform      string                   `yaml:"platform"`
	AppURL        string                   `yaml:"app_url"`
	MaxToolRounds int                      `yaml:"max_tool_rounds"`
	Providers     []ProviderConfig         `yaml:"providers"`
	Routing       RoutingConfig            `yaml:"routing"`
	Middleware    []MiddlewareConfig       `yaml:"middleware"`
	Guardrails    GuardrailsConfig         `yaml:"guardrails"`
	History       HistoryConfig            `yaml:"history"`
	Retrieval     RetrievalConfig          `yaml:"retrieval"`
	Tools         ToolsConfig              `yaml:"tools"`
	MCPServers    []mcpclient.ServerConfig `yaml:"mcp_servers"`
	Monitoring    MonitoringConfig         `yaml:"monitoring"`
}

// ProviderConfig holds the credentials of one upstream provider. Which
// fields apply depends on Kind.
type ProviderConfig struct {
	Kind      models.Provider `yaml:"kind"`
	BaseURL   string          `yaml:"base_url"`
	APIKey    string          `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	AccountID string          `yaml:"account_id"`
	AccessKey string          `yaml:"access_key"`
	SecretKey string          `yaml:"secret_key"` //nolint:gosec // configuration field, not a hardcoded secret
	Region    string          `yaml:"region"`
	CacheTTL  int             `yaml:"cache_ttl"` // Gateway cache seconds (workers).
}

// RoutingConfig tunes model selection.
type RoutingConfig struct {
	// Preferences lists model ids per intent (chat, coding, creative,
	// image, search), tried before the cheapest match.
	Preferences map[string][]string `yaml:"preferences"`
}

// MiddlewareConfig selects one turn middleware.
type MiddlewareConfig struct {
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:"params"`
}

// GuardrailsConfig selects the policy backend.
type GuardrailsConfig struct {
	Enabled         bool                     `yaml:"enabled"`
	Backend         string                   `yaml:"backend"` // "classifier" or "bedrock".
	ClassifierModel string                   `yaml:"classifier_model"`
	Bedrock         guardrails.BedrockConfig `yaml:"bedrock"`
}

// HistoryConfig selects the conversation store backend.
type HistoryConfig struct {
	Backend string `yaml:"backend"` // "memory" (default), "file" or "sql".
	Dir     string `yaml:"dir"`
	Driver  string `yaml:"driver"` // sql only: "sqlite" (default) or "postgres".
	DSN     string `yaml:"dsn"`
}

// RetrievalConfig configures knowledge base augmentation.
type RetrievalConfig struct {
	Enabled        bool                    `yaml:"enabled"`
	TopK           int                     `yaml:"top_k"`
	ScoreThreshold float64                 `yaml:"score_threshold"`
	Bedrock        retrieval.BedrockConfig `yaml:"bedrock"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	WeatherAPIKey string `yaml:"weather_api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	// Media registers the image, video and music tools; it needs the
	// replicate provider.
	Media   bool   `yaml:"media"`
	Timeout string `yaml:"timeout"` // Per-call timeout as a duration string.
	// Extract registers extract_content. Pages are stored in the knowledge
	// base only when retrieval has a data source.
	Extract bool `yaml:"extract"`
	// SummaryModel answers extract_content and summarise_article. It falls
	// back to default_model, then to the cheapest configured chat model.
	SummaryModel string `yaml:"summary_model"`
}

// MonitoringConfig sizes the metric buffers.
type MonitoringConfig struct {
	Capacity int `yaml:"capacity"`
	Buffer   int `yaml:"buffer"`
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so credentials can live in the environment (e.g. loaded
// from a .env file) rather than in the config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("engine: config: at least one provider is required")
	}

	kinds := make(map[models.Provider]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if p.Kind == "" {
			return fmt.Errorf("engine: config: provider kind is required")
		}
		if !p.Kind.Valid() {
			return fmt.Errorf("engine: config: unknown provider %q", p.Kind)
		}
		if _, dup := kinds[p.Kind]; dup {
			return fmt.Errorf("engine: config: duplicate provider %q", p.Kind)
		}
		kinds[p.Kind] = struct{}{}
	}

	if c.MaxToolRounds < 0 {
		return fmt.Errorf("engine: config: max_tool_rounds must not be negative")
	}

	if c.DefaultModel != "" {
		desc, err := models.Builtin().Lookup(c.DefaultModel)
		if err != nil {
			return fmt.Errorf("engine: config: default_model: %w", err)
		}
		if _, ok := kinds[desc.Provider]; !ok {
			return fmt.Errorf("engine: config: default_model %q needs provider %q", c.DefaultModel, desc.Provider)
		}
	}

	for i, m := range c.Middleware {
		if _, ok := middlewareFactories[m.Kind]; !ok {
			return fmt.Errorf("engine: config: middleware[%d]: unknown kind %q", i, m.Kind)
		}
	}

	if c.Guardrails.Enabled {
		switch c.Guardrails.Backend {
		case "", "classifier":
			if _, ok := kinds[models.Workers]; !ok {
				return fmt.Errorf("engine: config: classifier guardrails need the workers provider")
			}
		case "bedrock":
			if err := c.Guardrails.Bedrock.Validate(); err != nil {
				return fmt.Errorf("engine: config: %w", err)
			}
		default:
			return fmt.Errorf("engine: config: unknown guardrails backend %q", c.Guardrails.Backend)
		}
	}

	switch c.History.Backend {
	case "", "memory":
	case "file":
		if c.History.Dir == "" {
			return fmt.Errorf("engine: config: file history needs a dir")
		}
	case "sql":
		switch c.History.Driver {
		case "", history.DriverSQLite, history.DriverPostgres:
		default:
			return fmt.Errorf("engine: config: unknown history sql driver %q", c.History.Driver)
		}
		if c.History.DSN == "" {
			return fmt.Errorf("engine: config: sql history needs a dsn")
		}
	default:
		return fmt.Errorf("engine: config: unknown history backend %q", c.History.Backend)
	}

	if c.Tools.SummaryModel != "" {
		desc, err := models.Builtin().Lookup(c.Tools.SummaryModel)
		if err != nil {
			return fmt.Errorf("engine: config: tools summary_model: %w", err)
		}
		if _, ok := kinds[desc.Provider]; !ok {
			return fmt.Errorf("engine: config: tools summary_model %q needs provider %q", c.Tools.SummaryModel, desc.Provider)
		}
	}

	if c.Tools.Media {
		if _, ok := kinds[models.Replicate]; !ok {
			return fmt.Errorf("engine: config: media tools need the replicate provider")
		}
	}
	if c.Tools.Timeout != "" {
		if _, err := time.ParseDuration(c.Tools.Timeout); err != nil {
			return fmt.Errorf("engine: config: tools timeout %q: %w", c.Tools.Timeout, err)
		}
	}

	names := make(map[string]struct{}, len(c.MCPServers))
	for _, m := range c.MCPServers {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("engine: config: %w", err)
		}
		if _, dup := names[m.Name]; dup {
			return fmt.Errorf("engine: config: duplicate mcp server name %q", m.Name)
		}
		names[m.Name] = struct{}{}
	}

	return nil
}
