// Package retrieval augments prompts with passages from a knowledge base.
package retrieval

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Document is one retrieved passage.
type Document struct {
	Text   string
	Source string
	Score  float64
}

// Retriever finds passages relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}

// Options tune Augment.
type Options struct {
	TopK           int     // Passages to request; defaults to 5.
	ScoreThreshold float64 // Passages scoring below it are dropped.
}

// Augmented is the result of Augment.
type Augmented struct {
	Prompt    string
	Citations []string
	Documents []Document
}

// Augment retrieves passages for prompt and prepends them as a context
// block. With no passage above the threshold the prompt is returned as is.
// Citations are the distinct sources of the passages used.
func Augment(ctx context.Context, r Retriever, prompt string, opts Options) (Augmented, error) {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}

	docs, err := r.Retrieve(ctx, prompt, opts.TopK)
	if err != nil {
		return Augmented{}, fmt.Errorf("retrieval: %w", err)
	}

	var used []Document
	for _, d := range docs {
		if d.Score < opts.ScoreThreshold || strings.TrimSpace(d.Text) == "" {
			continue
		}
		used = append(used, d)
		if len(used) == opts.TopK {
			break
		}
	}

	if len(used) == 0 {
		return Augmented{Prompt: prompt}, nil
	}

	var b strings.Builder
	b.WriteString("Use the following context to answer the question. If the context does not help, answer from your own knowledge.\n\n<context>\n")

	var citations []string
	for i, d := range used {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(d.Text))
		if d.Source != "" && !slices.Contains(citations, d.Source) {
			citations = append(citations, d.Source)
		}
	}
	b.WriteString("</context>\n\nQuestion: ")
	b.WriteString(prompt)

	return Augmented{Prompt: b.String(), Citations: citations, Documents: used}, nil
}
