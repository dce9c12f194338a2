package toolbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/germanamz/assistant/pkg/chats/content"
)

// DefaultConcurrency bounds how many calls of one batch run at once.
const DefaultConcurrency = 4

// Options configure a ToolBox.
type Options struct {
	Concurrency int           // Max concurrent calls in ExecuteAll; defaults to DefaultConcurrency.
	Timeout     time.Duration // Per-call timeout; zero means the caller's deadline only.
	Logger      *slog.Logger
}

type entry struct {
	tool     Tool
	required []string
}

// ToolBox is the tool registry and executor. It is safe for concurrent use.
type ToolBox struct {
	mu    sync.RWMutex
	tools map[string]entry
	opts  Options
	sem   chan struct{}
}

// New creates a new ToolBox ready for use.
func New(opts ...Options) *ToolBox {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return &ToolBox{
		tools: make(map[string]entry),
		opts:  o,
		sem:   make(chan struct{}, o.Concurrency),
	}
}

// Register adds one or more tools. A tool with the same name is replaced.
func (tb *ToolBox) Register(tools ...Tool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	for _, t := range tools {
		tb.tools[t.Name] = entry{tool: t, required: requiredKeys(t.InputSchema)}
	}
}

// Get returns a tool by name and a boolean indicating whether it was found.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	e, ok := tb.tools[name]
	return e.tool, ok
}

// Merge registers all tools from another ToolBox into this one.
func (tb *ToolBox) Merge(other *ToolBox) {
	tb.Register(other.Tools()...)
}

// Tools returns all registered tools sorted by name.
func (tb *ToolBox) Tools() []Tool {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	result := make([]Tool, 0, len(tb.tools))
	for _, e := range tb.tools {
		result = append(result, e.tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result
}

// Len returns the number of registered tools.
func (tb *ToolBox) Len() int {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	return len(tb.tools)
}

// Execute runs one tool call and always returns a result. Unknown tools,
// malformed arguments, missing required fields, handler errors and panics
// all become error-status results.
func (tb *ToolBox) Execute(ctx context.Context, tc content.ToolCall, req Request) (result content.ToolResult) {
	result = content.ToolResult{ToolCallID: tc.ID, Name: tc.Name}

	tb.mu.RLock()
	e, ok := tb.tools[tc.Name]
	tb.mu.RUnlock()

	if !ok {
		return failed(result, fmt.Sprintf("tool not found: %s", tc.Name))
	}

	args := json.RawMessage(strings.TrimSpace(tc.Arguments))
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return failed(result, fmt.Sprintf("invalid arguments for %s: %v", tc.Name, err))
	}

	var missing []string
	for _, k := range e.required {
		if v, ok := fields[k]; !ok || string(v) == "null" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return failed(result, fmt.Sprintf("missing required arguments for %s: %s", tc.Name, strings.Join(missing, ", ")))
	}

	if tb.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tb.opts.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			tb.opts.Logger.Error("tool panicked", "tool", tc.Name, "panic", r)
			result = failed(result, fmt.Sprintf("tool %s panicked: %v", tc.Name, r))
		}
	}()

	out, err := e.tool.Handler(ctx, Call{ID: tc.ID, Name: tc.Name, Args: args, Request: req})
	if err != nil {
		return failed(result, err.Error())
	}

	result.Status = out.Status
	if result.Status == "" {
		result.Status = content.StatusSuccess
	}
	result.Content = out.Content

	if out.Data != nil {
		data, err := json.Marshal(out.Data)
		if err != nil {
			return failed(result, fmt.Sprintf("encode %s result: %v", tc.Name, err))
		}
		result.Data = data
	}

	return result
}

// ExecuteAll runs calls concurrently, bounded by the configured concurrency,
// and returns exactly one result per call in call order.
func (tb *ToolBox) ExecuteAll(ctx context.Context, calls []content.ToolCall, req Request) []content.ToolResult {
	results := make([]content.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Go(func() {
			select {
			case tb.sem <- struct{}{}:
				defer func() { <-tb.sem }()
			case <-ctx.Done():
				results[i] = failed(content.ToolResult{ToolCallID: tc.ID, Name: tc.Name}, ctx.Err().Error())
				return
			}

			results[i] = tb.Execute(ctx, tc, req)
		})
	}
	wg.Wait()

	return results
}

func failed(r content.ToolResult, msg string) content.ToolResult {
	r.Status = content.StatusError
	r.Content = msg
	r.Data = nil
	return r
}

// requiredKeys extracts the top-level "required" list of a JSON schema.
func requiredKeys(schema json.RawMessage) []string {
	if len(schema) == 0 {
		return nil
	}

	var s struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &s); err != nil {
		return nil
	}

	return s.Required
}
