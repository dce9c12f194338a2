package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/germanamz/assistant/pkg/guardrails"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/tools/mcpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
default_model: claude-3.5-haiku
platform: web
app_url: https://assistant.example
max_tool_rounds: 3

providers:
  - kind: anthropic
    api_key: sk-test
  - kind: workers
    account_id: acct
    api_key: cf-token
    cache_ttl: 300

routing:
  preferences:
    coding: [claude-3.5-sonnet]

middleware:
  - kind: timeout
    params:
      duration: 90s
  - kind: logger

guardrails:
  enabled: true
  backend: classifier

history:
  backend: file
  dir: /var/lib/assistant

retrieval:
  enabled: false
  top_k: 3
  score_threshold: 0.4

tools:
  weather_api_key: owm-key
  timeout: 20s

mcp_servers:
  - name: search
    command: mcp-search
    args: ["--port", "8080"]
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "claude-3.5-haiku", cfg.DefaultModel)
	assert.Equal(t, "web", cfg.Platform)
	assert.Equal(t, "https://assistant.example", cfg.AppURL)
	assert.Equal(t, 3, cfg.MaxToolRounds)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, models.Anthropic, cfg.Providers[0].Kind)
	assert.Equal(t, "sk-test", cfg.Providers[0].APIKey)
	assert.Equal(t, "acct", cfg.Providers[1].AccountID)
	assert.Equal(t, 300, cfg.Providers[1].CacheTTL)

	assert.Equal(t, []string{"claude-3.5-sonnet"}, cfg.Routing.Preferences["coding"])

	require.Len(t, cfg.Middleware, 2)
	assert.Equal(t, "timeout", cfg.Middleware[0].Kind)
	assert.Equal(t, "90s", cfg.Middleware[0].Params["duration"])

	assert.True(t, cfg.Guardrails.Enabled)
	assert.Equal(t, "file", cfg.History.Backend)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.4, cfg.Retrieval.ScoreThreshold, 1e-9)
	assert.Equal(t, "owm-key", cfg.Tools.WeatherAPIKey)

	require.Len(t, cfg.MCPServers, 1)
	assert.Equal(t, "search", cfg.MCPServers[0].Name)
	assert.Equal(t, []string{"--port", "8080"}, cfg.MCPServers[0].Args)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/no/such/file.yaml")
	assert.Error(t, err)
}

func TestLoadConfig_ExpandsEnvVars(t *testing.T) {
	t.Setenv("ASSISTANT_TEST_API_KEY", "sk-from-env")

	yaml := `
providers:
  - kind: anthropic
    api_key: ${ASSISTANT_TEST_API_KEY}
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Providers[0].APIKey)
}

func TestLoadConfig_UnsetEnvVarExpandsToEmpty(t *testing.T) {
	yaml := `
providers:
  - kind: anthropic
    api_key: ${ASSISTANT_TEST_UNSET_VAR_12345}
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.Providers[0].APIKey)
}

func TestConfig_Validate(t *testing.T) {
	anthropicOnly := []ProviderConfig{{Kind: models.Anthropic}}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{Providers: anthropicOnly}, ""},
		{"no providers", Config{}, "at least one provider"},
		{"kind required", Config{Providers: []ProviderConfig{{}}}, "kind is required"},
		{"unknown kind", Config{Providers: []ProviderConfig{{Kind: "nope"}}}, "unknown provider"},
		{"duplicate provider", Config{Providers: []ProviderConfig{{Kind: models.Anthropic}, {Kind: models.Anthropic}}}, "duplicate provider"},
		{"negative rounds", Config{Providers: anthropicOnly, MaxToolRounds: -1}, "max_tool_rounds"},
		{"unknown default model", Config{Providers: anthropicOnly, DefaultModel: "nope"}, "default_model"},
		{"default model without provider", Config{Providers: anthropicOnly, DefaultModel: "gpt-4o"}, `needs provider "openai"`},
		{"unknown middleware", Config{Providers: anthropicOnly, Middleware: []MiddlewareConfig{{Kind: "retry"}}}, "unknown kind"},
		{"classifier without workers", Config{Providers: anthropicOnly, Guardrails: GuardrailsConfig{Enabled: true}}, "workers provider"},
		{"bedrock guardrails without keys", Config{Providers: anthropicOnly, Guardrails: GuardrailsConfig{Enabled: true, Backend: "bedrock"}}, "guardrail_id"},
		{"bedrock guardrails", Config{Providers: anthropicOnly, Guardrails: GuardrailsConfig{Enabled: true, Backend: "bedrock", Bedrock: guardrails.BedrockConfig{AccessKey: "a", SecretKey: "s", GuardrailID: "g"}}}, ""},
		{"unknown guardrails backend", Config{Providers: anthropicOnly, Guardrails: GuardrailsConfig{Enabled: true, Backend: "regex"}}, "unknown guardrails backend"},
		{"disabled guardrails ignore backend", Config{Providers: anthropicOnly, Guardrails: GuardrailsConfig{Backend: "regex"}}, ""},
		{"file history without dir", Config{Providers: anthropicOnly, History: HistoryConfig{Backend: "file"}}, "needs a dir"},
		{"unknown summary model", Config{Providers: anthropicOnly, Tools: ToolsConfig{SummaryModel: "nope"}}, "summary_model"},
		{"summary model without provider", Config{Providers: anthropicOnly, Tools: ToolsConfig{SummaryModel: "gpt-4o"}}, `summary_model "gpt-4o" needs provider "openai"`},
		{"sql history without dsn", Config{Providers: anthropicOnly, History: HistoryConfig{Backend: "sql"}}, "needs a dsn"},
		{"unknown sql driver", Config{Providers: anthropicOnly, History: HistoryConfig{Backend: "sql", Driver: "oracle", DSN: "x"}}, "unknown history sql driver"},
		{"unknown history backend", Config{Providers: anthropicOnly, History: HistoryConfig{Backend: "redis"}}, "unknown history backend"},
		{"media without replicate", Config{Providers: anthropicOnly, Tools: ToolsConfig{Media: true}}, "replicate provider"},
		{"bad tools timeout", Config{Providers: anthropicOnly, Tools: ToolsConfig{Timeout: "soon"}}, "tools timeout"},
		{"mcp without transport", Config{Providers: anthropicOnly, MCPServers: []mcpclient.ServerConfig{{Name: "m1"}}}, "exactly one of command or url"},
		{"mcp name required", Config{Providers: anthropicOnly, MCPServers: []mcpclient.ServerConfig{{Command: "cmd"}}}, "name is required"},
		{"duplicate mcp", Config{Providers: anthropicOnly, MCPServers: []mcpclient.ServerConfig{{Name: "m1", Command: "a"}, {Name: "m1", Command: "b"}}}, "duplicate mcp server name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
