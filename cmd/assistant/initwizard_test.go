package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/germanamz/assistant/pkg/engine"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalWizardConfig_LoadsAndValidates(t *testing.T) {
	data, err := marshalWizardConfig(wizardConfig{
		Providers:    []string{"anthropic", "workers", "replicate"},
		DefaultModel: "claude-3.5-haiku",
		Guardrails:   "classifier",
		HistoryDir:   "history",
		Weather:      true,
		Media:        true,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "assistant.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("CLOUDFLARE_ACCOUNT_ID", "acct")

	cfg, err := engine.LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Providers, 3)
	assert.Equal(t, models.Workers, cfg.Providers[1].Kind)
	assert.Equal(t, "acct", cfg.Providers[1].AccountID)
	assert.Equal(t, "claude-3.5-haiku", cfg.DefaultModel)
	assert.True(t, cfg.Guardrails.Enabled)
	assert.Equal(t, "file", cfg.History.Backend)
	assert.True(t, cfg.Tools.Media)
	assert.Len(t, cfg.Middleware, 3)
}

func TestMarshalWizardConfig_Minimal(t *testing.T) {
	data, err := marshalWizardConfig(wizardConfig{Providers: []string{"openai"}})
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, "${OPENAI_API_KEY}")
	assert.NotContains(t, s, "guardrails")
	assert.NotContains(t, s, "history")
	assert.NotContains(t, s, "default_model")
}

func TestAvailableModels(t *testing.T) {
	descs := availableModels([]string{"mistral"})
	require.NotEmpty(t, descs)
	for _, d := range descs {
		assert.Equal(t, models.Mistral, d.Provider)
		assert.True(t, d.Is(models.Chat))
	}
}

func TestWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "assistant.yaml")

	require.NoError(t, writeConfig(path, []byte("a: 1\n"), false))
	assert.ErrorContains(t, writeConfig(path, []byte("a: 2\n"), false), "already exists")

	require.NoError(t, writeConfig(path, []byte("a: 3\n"), true))
	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Equal(t, "a: 3\n", string(data))
}
