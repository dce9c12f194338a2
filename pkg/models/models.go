// Package models is the static capability table of every model the assistant
// can route to. Lookups never touch the network.
package models

import (
	"fmt"
	"slices"
	"strings"
)

// Provider is the closed set of upstream services a model can be served by.
type Provider string

const (
	Anthropic  Provider = "anthropic"
	Workers    Provider = "workers"
	Grok       Provider = "grok"
	OpenAI     Provider = "openai"
	Mistral    Provider = "mistral"
	Perplexity Provider = "perplexity"
	Google     Provider = "google"
	Bedrock    Provider = "bedrock"
	Replicate  Provider = "replicate"
	Ark        Provider = "ark"
)

// Providers returns every known provider tag.
func Providers() []Provider {
	return []Provider{Anthropic, Workers, Grok, OpenAI, Mistral, Perplexity, Google, Bedrock, Replicate, Ark}
}

// Valid reports whether p is a known provider tag.
func (p Provider) Valid() bool {
	return slices.Contains(Providers(), p)
}

// Type is a capability class used for routing and system prompt choice.
type Type string

const (
	Chat     Type = "chat"
	Coding   Type = "coding"
	Creative Type = "creative"
	Image    Type = "image"
	Speech   Type = "speech"
	Vision   Type = "vision"
	Search   Type = "search"
)

// Media is a non-text input kind a model accepts. Values match the part
// kinds of attachments.
type Media string

const (
	MediaImage Media = "image"
	MediaAudio Media = "audio"
)

// Tier is a relative cost class. Lower is cheaper.
type Tier int

const (
	Free Tier = iota
	Low
	Medium
	High
)

// ParseTier parses a tier name. The empty string means High, i.e. no limit.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return Free, nil
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high", "":
		return High, nil
	default:
		return 0, fmt.Errorf("models: unknown cost tier %q", s)
	}
}

func (t Tier) String() string {
	switch t {
	case Free:
		return "free"
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Descriptor describes one routable model.
type Descriptor struct {
	ID            string
	Aliases       []string
	Provider      Provider
	Upstream      string // Model name as the provider knows it.
	SupportsTools bool
	Types         []Type
	Media         []Media
	Cost          Tier
}

// Is reports whether the model belongs to the given type.
func (d Descriptor) Is(t Type) bool { return slices.Contains(d.Types, t) }

// Accepts reports whether the model takes every media kind in ms.
func (d Descriptor) Accepts(ms ...Media) bool {
	for _, m := range ms {
		if !slices.Contains(d.Media, m) {
			return false
		}
	}
	return true
}

// UnknownModelError is returned when an id or alias is not in the catalog.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("models: unknown model %q", e.Model)
}

// Catalog is an immutable, ordered set of descriptors indexed by id and alias.
// It is safe for concurrent use.
type Catalog struct {
	order []Descriptor
	index map[string]int
}

// NewCatalog builds a catalog. Ids and aliases share one namespace, are
// matched case-insensitively and must be unique.
func NewCatalog(descs ...Descriptor) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(descs))}

	for _, d := range descs {
		if d.ID == "" || d.Upstream == "" {
			return nil, fmt.Errorf("models: descriptor %q needs an id and an upstream name", d.ID)
		}
		if !d.Provider.Valid() {
			return nil, fmt.Errorf("models: %s: unknown provider %q", d.ID, d.Provider)
		}

		pos := len(c.order)
		for _, name := range append([]string{d.ID}, d.Aliases...) {
			key := strings.ToLower(name)
			if _, dup := c.index[key]; dup {
				return nil, fmt.Errorf("models: duplicate model name %q", name)
			}
			c.index[key] = pos
		}
		c.order = append(c.order, d)
	}

	return c, nil
}

// Lookup resolves an id or alias.
func (c *Catalog) Lookup(name string) (Descriptor, error) {
	i, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Descriptor{}, &UnknownModelError{Model: name}
	}
	return c.order[i], nil
}

// All returns the descriptors in table order.
func (c *Catalog) All() []Descriptor {
	return slices.Clone(c.order)
}

// Filter returns the descriptors matching keep, in table order.
func (c *Catalog) Filter(keep func(Descriptor) bool) []Descriptor {
	var out []Descriptor
	for _, d := range c.order {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// Restrict returns a catalog holding only the models served by the given
// providers, preserving order.
func (c *Catalog) Restrict(providers ...Provider) *Catalog {
	out, _ := NewCatalog(c.Filter(func(d Descriptor) bool {
		return slices.Contains(providers, d.Provider)
	})...)
	return out
}
