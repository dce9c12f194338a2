// Package prompts renders the system prompts sent with every dispatch.
package prompts

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
	"time"

	"github.com/germanamz/assistant/pkg/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Location is the user's position, when known.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Context is the per-request data the standard prompt mentions.
type Context struct {
	Date     string // YYYY-MM-DD; today (UTC) when empty.
	Location *Location
}

// Standard returns the general assistant prompt. Tool guidance is included
// only when tools is true.
func Standard(ctx Context, tools bool) string {
	date := ctx.Date
	if date == "" {
		date = time.Now().UTC().Format(time.DateOnly)
	}

	return render("standard.tmpl", struct {
		Date     string
		Location *Location
		Tools    bool
	}{date, ctx.Location, tools})
}

// Coaching returns the prompt-refinement meta-prompt.
func Coaching() string { return render("coaching.tmpl", nil) }

// Coding returns the prompt for coding models.
func Coding() string { return render("coding.tmpl", nil) }

// ForModel picks the system prompt for a model by its primary type. Image and
// speech models get no system prompt.
func ForModel(d models.Descriptor, ctx Context) string {
	if len(d.Types) > 0 {
		switch d.Types[0] {
		case models.Coding:
			return Coding()
		case models.Image, models.Speech:
			return ""
		}
	}

	return Standard(ctx, d.SupportsTools)
}

func render(name string, data any) string {
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		panic(err)
	}
	return strings.TrimSpace(b.String())
}
