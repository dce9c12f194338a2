package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/germanamz/assistant/pkg/tools/toolbox"
)

const extractInstructions = `You summarise web content for a user.
Write a concise summary of each page covering its main points, key facts and any conclusions.
Refer to pages by their number, for example [1]. Do not invent details that are not in the content.`

const summariseInstructions = `You summarise articles.
Produce a short title line followed by a summary of at most five paragraphs.
Keep the author's key arguments, findings and any figures that support them.
Finish with a bullet list of the main takeaways. Use only information from the article.`

// Summariser builds the summarise_article tool.
type Summariser struct {
	summarizer Summarizer
}

// NewSummariser creates the summarise_article tool over s.
func NewSummariser(s Summarizer) *Summariser {
	return &Summariser{summarizer: s}
}

// Tool returns the summarise_article tool.
func (s *Summariser) Tool() toolbox.Tool {
	return toolbox.Tool{
		Name:        "summarise_article",
		Description: "Summarise the text of an article the user provides.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"article":{"type":"string","description":"The full text of the article"}},"required":["article"]}`),
		Handler:     s.handle,
	}
}

func (s *Summariser) handle(ctx context.Context, call toolbox.Call) (toolbox.Output, error) {
	var in struct {
		Article string `json:"article"`
	}
	if err := json.Unmarshal(call.Args, &in); err != nil {
		return toolbox.Failed("summarise_article: invalid input"), nil
	}
	if strings.TrimSpace(in.Article) == "" {
		return toolbox.Failed("Missing article"), nil
	}

	summary, err := s.summarizer.Summarize(ctx, summariseInstructions, clip(in.Article, maxPromptChars))
	if err != nil {
		return toolbox.Failed(fmt.Sprintf("summarise_article: %v", err)), nil
	}
	if strings.TrimSpace(summary) == "" {
		return toolbox.Failed("summarise_article: the model returned no summary"), nil
	}

	return toolbox.Output{Content: summary, Data: map[string]string{"summary": summary}}, nil
}
