package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *models.Catalog {
	t.Helper()

	c, err := models.NewCatalog(
		models.Descriptor{ID: "chat-cheap", Provider: models.Workers, Upstream: "a", Types: []models.Type{models.Chat}, Cost: models.Free},
		models.Descriptor{ID: "chat-cheap-2", Provider: models.Workers, Upstream: "b", Types: []models.Type{models.Chat}, Cost: models.Free},
		models.Descriptor{ID: "coder", Provider: models.Mistral, Upstream: "c", Types: []models.Type{models.Coding}, Cost: models.Low},
		models.Descriptor{ID: "coder-pro", Provider: models.Anthropic, Upstream: "d", Types: []models.Type{models.Chat, models.Coding}, Cost: models.High},
		models.Descriptor{ID: "painter", Provider: models.Workers, Upstream: "e", Types: []models.Type{models.Image}, Cost: models.Medium},
		models.Descriptor{ID: "eyes", Provider: models.OpenAI, Upstream: "f", Types: []models.Type{models.Vision}, Media: []models.Media{models.MediaImage}, Cost: models.Medium},
		models.Descriptor{ID: "ears", Provider: models.Workers, Upstream: "g", Types: []models.Type{models.Speech}, Media: []models.Media{models.MediaAudio}, Cost: models.Free},
	)
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	tests := []struct {
		prompt string
		want   router.Intent
	}{
		{"hello there", router.IntentChat},
		{"", router.IntentChat},
		{"Why does this python function throw an exception?", router.IntentCoding},
		{"```go\nfunc main() {}\n```", router.IntentCoding},
		{"Write me a poem about autumn", router.IntentCreative},
		{"Generate an image of a cat wearing a hat", router.IntentImage},
		{"What is the latest news on the election?", router.IntentSearch},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			assert.Equal(t, tt.want, router.Classify(tt.prompt))
		})
	}
}

func TestSelectCheapestWithTableOrderTies(t *testing.T) {
	s := router.New(testCatalog(t), router.Options{})

	d, err := s.Select(context.Background(), "hi", nil, models.High)
	require.NoError(t, err)
	assert.Equal(t, "chat-cheap", d.ID)
}

func TestSelectCoding(t *testing.T) {
	s := router.New(testCatalog(t), router.Options{})

	d, err := s.Select(context.Background(), "fix this bug in my javascript", nil, models.High)
	require.NoError(t, err)
	assert.Equal(t, "coder", d.ID)
}

func TestSelectBudgetFiltersFirst(t *testing.T) {
	s := router.New(testCatalog(t), router.Options{
		Preferences: map[router.Intent][]string{router.IntentCoding: {"coder-pro"}},
	})

	d, err := s.Select(context.Background(), "refactor this function", nil, models.Low)
	require.NoError(t, err)
	assert.Equal(t, "coder", d.ID)
}

func TestSelectPreferenceOverridesCost(t *testing.T) {
	s := router.New(testCatalog(t), router.Options{
		Preferences: map[router.Intent][]string{router.IntentCoding: {"missing", "coder-pro"}},
	})

	d, err := s.Select(context.Background(), "refactor this function", nil, models.High)
	require.NoError(t, err)
	assert.Equal(t, "coder-pro", d.ID)
}

func TestSelectImageAttachment(t *testing.T) {
	s := router.New(testCatalog(t), router.Options{})

	d, err := s.Select(context.Background(), "what is this?", []content.Part{content.Image{URL: "https://x/y.png"}}, models.High)
	require.NoError(t, err)
	assert.Equal(t, "eyes", d.ID)
}

func TestSelectAudioAttachment(t *testing.T) {
	s := router.New(testCatalog(t), router.Options{})

	d, err := s.Select(context.Background(), "", []content.Part{content.Audio{Data: []byte{1}}}, models.Free)
	require.NoError(t, err)
	assert.Equal(t, "ears", d.ID)
}

func TestSelectNoCandidate(t *testing.T) {
	s := router.New(testCatalog(t), router.Options{})

	_, err := s.Select(context.Background(), "draw a picture of a dog", nil, models.Low)

	var serr *router.SelectionError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, router.IntentImage, serr.Intent)
	assert.Equal(t, models.Low, serr.Budget)
}

func TestSelectMixedMediaNeedsBoth(t *testing.T) {
	s := router.New(testCatalog(t), router.Options{})

	_, err := s.Select(context.Background(), "", []content.Part{content.Image{}, content.Audio{}}, models.High)

	var serr *router.SelectionError
	require.True(t, errors.As(err, &serr))
	assert.Len(t, serr.Media, 2)
}

func TestSelectCancelled(t *testing.T) {
	s := router.New(testCatalog(t), router.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Select(ctx, "hi", nil, models.High)
	assert.ErrorIs(t, err, context.Canceled)
}
