package prompts_test

import (
	"testing"
	"time"

	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/prompts"
	"github.com/stretchr/testify/assert"
)

func TestStandard(t *testing.T) {
	p := prompts.Standard(prompts.Context{Date: "2024-05-01"}, false)

	assert.Contains(t, p, "<current_date>2024-05-01</current_date>")
	assert.NotContains(t, p, "<user_location>")
	assert.NotContains(t, p, "tool")
}

func TestStandardWithLocationAndTools(t *testing.T) {
	p := prompts.Standard(prompts.Context{
		Date:     "2024-05-01",
		Location: &prompts.Location{Latitude: 51.5, Longitude: -0.12},
	}, true)

	assert.Contains(t, p, "<user_latitude>51.5</user_latitude>")
	assert.Contains(t, p, "<user_longitude>-0.12</user_longitude>")
	assert.Contains(t, p, "if a tool is required")
}

func TestStandardDefaultsDate(t *testing.T) {
	p := prompts.Standard(prompts.Context{}, false)
	assert.Contains(t, p, time.Now().UTC().Format(time.DateOnly))
}

func TestForModel(t *testing.T) {
	ctx := prompts.Context{Date: "2024-01-01"}

	assert.Equal(t, prompts.Coding(), prompts.ForModel(models.Descriptor{Types: []models.Type{models.Coding}}, ctx))
	assert.Empty(t, prompts.ForModel(models.Descriptor{Types: []models.Type{models.Image}}, ctx))
	assert.Empty(t, prompts.ForModel(models.Descriptor{Types: []models.Type{models.Speech}}, ctx))
	assert.Equal(t, prompts.Standard(ctx, true), prompts.ForModel(models.Descriptor{Types: []models.Type{models.Chat, models.Coding}, SupportsTools: true}, ctx))
}

func TestCoaching(t *testing.T) {
	p := prompts.Coaching()
	assert.Contains(t, p, "<revised_prompt>")
	assert.Contains(t, p, `Type "Use this prompt"`)
}
