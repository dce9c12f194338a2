package usage

import (
	"sort"
	"sync"
)

// TokenCount holds input and output token counts for a single model call.
type TokenCount struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns the sum of input and output tokens.
func (tc TokenCount) Total() int {
	return tc.InputTokens + tc.OutputTokens
}

// IsZero reports whether no tokens were counted.
func (tc TokenCount) IsZero() bool {
	return tc.InputTokens == 0 && tc.OutputTokens == 0
}

// Tracker accumulates token usage per model. It is safe for concurrent use
// and the zero value is ready to use.
type Tracker struct {
	mu      sync.Mutex
	calls   int
	byModel map[string]TokenCount
}

// Add records the tokens spent by one call to model.
func (t *Tracker) Add(model string, tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.byModel == nil {
		t.byModel = make(map[string]TokenCount)
	}

	sum := t.byModel[model]
	sum.InputTokens += tc.InputTokens
	sum.OutputTokens += tc.OutputTokens
	t.byModel[model] = sum
	t.calls++
}

// Model returns the aggregate for a single model.
func (t *Tracker) Model(model string) TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.byModel[model]
}

// Models returns the names of every model with recorded usage, sorted.
func (t *Tracker) Models() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.byModel))
	for name := range t.byModel {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Total returns the aggregate token count across all models.
func (t *Tracker) Total() TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total TokenCount
	for _, e := range t.byModel {
		total.InputTokens += e.InputTokens
		total.OutputTokens += e.OutputTokens
	}

	return total
}

// Calls returns the number of recorded calls.
func (t *Tracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.calls
}
