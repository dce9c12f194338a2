// Package turn runs one conversational turn end to end: retrieval
// augmentation, input and output policy checks, model dispatch with the tool
// loop, and persistence of the new messages.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/germanamz/assistant/pkg/chats/chat"
	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/dispatch"
	"github.com/germanamz/assistant/pkg/guardrails"
	"github.com/germanamz/assistant/pkg/history"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/monitoring"
	"github.com/germanamz/assistant/pkg/prompts"
	"github.com/germanamz/assistant/pkg/retrieval"
	"github.com/germanamz/assistant/pkg/router"
	"github.com/germanamz/assistant/pkg/tools/toolbox"
)

// DefaultMaxToolRounds caps how many times tools run within one turn.
const DefaultMaxToolRounds = 5

// Selector picks a model when the request does not pin one.
type Selector interface {
	Select(ctx context.Context, prompt string, attachments []content.Part, budget models.Tier) (models.Descriptor, error)
}

// Guard checks text against the content policy.
type Guard interface {
	Validate(ctx context.Context, text string, dir guardrails.Direction) (guardrails.Result, error)
}

// Request is one user turn.
type Request struct {
	ChatID      string
	Input       string
	Attachments []content.Part
	Model       string       // Pinned model id or alias; empty lets the selector choose.
	Budget      *models.Tier // Nil means the highest tier.
	Mode        Mode         // Empty lets history decide (see resolveMode).
	Role        role.Role    // Role of a local-mode message; user when empty.
	Platform    string
	Params      modeladapter.Params
	UseRAG      bool
	DryRun      bool // Run the turn without writing history.
	AppURL      string
	User        *toolbox.User
}

// Result is the outcome of a turn. Exactly one of Messages or Violation is
// meaningful.
type Result struct {
	// Messages are the messages created on the assistant side, in order. In
	// local mode it holds the stored input message.
	Messages  []message.Message
	Violation *guardrails.Result
	Direction guardrails.Direction
	Model     models.Descriptor
	Mode      Mode
	// PersistErr is set when the turn completed but storing its messages
	// failed part way. Messages still holds everything computed.
	PersistErr error
}

// Options configure an Orchestrator.
type Options struct {
	Selector         Selector
	DefaultModel     string // Used when the selector finds nothing.
	History          history.Backend
	Guard            Guard
	Tools            *toolbox.ToolBox
	Retriever        retrieval.Retriever
	RetrievalOptions retrieval.Options
	MaxToolRounds    int
	Observer         Observer
	Monitor          monitoring.Recorder
	Logger           *slog.Logger
	Middleware       []Middleware
}

// Orchestrator drives turns through the pipeline. It holds no per-turn
// state and is safe for concurrent use.
type Orchestrator struct {
	dispatcher *dispatch.Dispatcher
	opts       Options
	handler    Handler
}

// New creates an Orchestrator over dispatcher.
func New(dispatcher *dispatch.Dispatcher, opts Options) *Orchestrator {
	if opts.Guard == nil {
		opts.Guard = guardrails.Disabled()
	}
	if opts.Tools == nil {
		opts.Tools = toolbox.New()
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = DefaultMaxToolRounds
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	opts.Monitor = monitoring.OrNop(opts.Monitor)
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	o := &Orchestrator{dispatcher: dispatcher, opts: opts}

	var h Handler = HandlerFunc(o.process)
	for i := len(opts.Middleware) - 1; i >= 0; i-- {
		h = opts.Middleware[i](h)
	}
	o.handler = h

	return o
}

// ProcessTurn runs req through the configured middleware and the pipeline.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req Request) (Result, error) {
	return o.handler.ProcessTurn(ctx, req)
}

// run carries the state of one turn.
type run struct {
	o     *Orchestrator
	req   Request
	route dispatch.Route
	store *history.Store
	round int
}

func (r *run) observe(ctx context.Context, s State, err error) {
	r.o.opts.Observer.Observe(ctx, Transition{
		ChatID: r.req.ChatID,
		Model:  r.route.Model.ID,
		State:  s,
		Round:  r.round,
		Err:    err,
	})
}

func (r *run) fail(ctx context.Context, err error) (Result, error) {
	r.observe(ctx, StateError, err)
	return Result{}, err
}

func (o *Orchestrator) process(ctx context.Context, req Request) (Result, error) {
	r := &run{o: o, req: req}

	if err := o.validate(req); err != nil {
		return r.fail(ctx, err)
	}

	user := ""
	if req.User != nil {
		user = req.User.Email
	}
	monitoring.TrackUsage(o.opts.Monitor, user)

	route, err := o.resolve(ctx, req)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.route = route
	r.store = history.Open(o.opts.History, req.Platform, route.Model.ID, history.WithShouldSave(!req.DryRun))

	if req.Mode == Local {
		return r.local(ctx)
	}

	return r.converse(ctx)
}

func (o *Orchestrator) validate(req Request) error {
	switch {
	case strings.TrimSpace(req.ChatID) == "":
		return &ValidationError{Field: "chatId", Reason: "is required"}
	case strings.TrimSpace(req.Input) == "":
		return &ValidationError{Field: "input", Reason: "is required"}
	case o.opts.History == nil:
		return &ValidationError{Field: "history", Reason: "is not configured"}
	}

	if _, err := ParseMode(string(req.Mode)); err != nil {
		return &ValidationError{Field: "mode", Reason: fmt.Sprintf("%q is not supported", req.Mode)}
	}
	if req.Role != "" && !req.Role.Valid() {
		return &ValidationError{Field: "role", Reason: fmt.Sprintf("%q is not supported", req.Role)}
	}

	return nil
}

// resolve binds the request to a model: a pinned model must exist; otherwise
// the selector chooses and the default model covers selection failures.
func (o *Orchestrator) resolve(ctx context.Context, req Request) (dispatch.Route, error) {
	if req.Model != "" {
		return o.dispatcher.Resolve(req.Model)
	}

	if o.opts.Selector == nil {
		if o.opts.DefaultModel == "" {
			return dispatch.Route{}, &ValidationError{Field: "model", Reason: "is required"}
		}
		return o.dispatcher.Resolve(o.opts.DefaultModel)
	}

	budget := models.High
	if req.Budget != nil {
		budget = *req.Budget
	}

	desc, err := o.opts.Selector.Select(ctx, req.Input, req.Attachments, budget)
	if err == nil {
		return o.dispatcher.Route(desc)
	}

	var selErr *router.SelectionError
	if !errors.As(err, &selErr) || o.opts.DefaultModel == "" {
		return dispatch.Route{}, err
	}

	o.opts.Logger.WarnContext(ctx, "model selection failed, using default",
		"chat_id", req.ChatID,
		"default", o.opts.DefaultModel,
		"error", err,
	)

	return o.dispatcher.Resolve(o.opts.DefaultModel)
}

func (r *run) local(ctx context.Context) (Result, error) {
	rl := r.req.Role
	if rl == "" {
		rl = role.User
	}

	msg := message.NewText(rl, r.req.Input)
	msg.Mode = string(Local)

	r.observe(ctx, StatePersist, nil)
	stored, err := r.store.Append(ctx, r.req.ChatID, msg)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.observe(ctx, StateDone, nil)

	return Result{Messages: []message.Message{stored}, Model: r.route.Model, Mode: Local}, nil
}

func (r *run) converse(ctx context.Context) (Result, error) {
	o := r.o
	prompt := r.req.Input

	var citations []string
	if r.req.UseRAG && o.opts.Retriever != nil {
		r.observe(ctx, StateAugment, nil)

		aug, err := retrieval.Augment(ctx, o.opts.Retriever, prompt, o.opts.RetrievalOptions)
		switch {
		case err == nil:
			prompt = aug.Prompt
			citations = aug.Citations
		case ctx.Err() != nil:
			return r.fail(ctx, ctx.Err())
		default:
			o.opts.Logger.WarnContext(ctx, "retrieval failed, using raw prompt", "chat_id", r.req.ChatID, "error", err)
		}
	}

	r.observe(ctx, StateInputGuard, nil)
	verdict, err := o.opts.Guard.Validate(ctx, prompt, guardrails.Input)
	if err != nil {
		return r.fail(ctx, err)
	}
	if !verdict.Valid {
		r.observe(ctx, StateDone, nil)
		return Result{Violation: &verdict, Direction: guardrails.Input, Model: r.route.Model}, nil
	}

	prior, err := r.store.Read(ctx, r.req.ChatID)
	if err != nil {
		return r.fail(ctx, err)
	}

	coach := resolveMode(r.req.Mode, r.req.Input, prior)
	mode := coach.mode

	parts := append([]content.Part{content.Text{Text: prompt}}, r.req.Attachments...)
	userMsg := message.New(role.User, parts...)
	userMsg.Mode = string(mode)

	userMsg, err = r.store.Append(ctx, r.req.ChatID, userMsg)
	if err != nil {
		return r.fail(ctx, err)
	}

	working := chat.New()
	if !coach.restart {
		working.Append(prior...)
	}
	working.Append(withText(userMsg, coach.text))

	if len(working.Readable()) == 0 {
		return r.fail(ctx, &ValidationError{Field: "history", Reason: "is empty"})
	}

	system := prompts.Coaching()
	if mode != PromptCoach {
		system = prompts.ForModel(r.route.Model, promptContext(r.req.User))
	}

	var tools []toolbox.Tool
	if r.route.Model.SupportsTools && o.opts.Tools.Len() > 0 {
		tools = o.opts.Tools.Tools()
	}

	produced, err := r.loop(ctx, working, system, tools, mode)
	if err != nil {
		return r.fail(ctx, err)
	}

	final := produced[len(produced)-1]
	final.Citations = mergeCitations(citations, final.Citations)
	produced[len(produced)-1] = final

	r.observe(ctx, StateOutputGuard, nil)
	verdict, err = o.opts.Guard.Validate(ctx, final.TextContent(), guardrails.Output)
	if err != nil {
		return r.fail(ctx, err)
	}
	if !verdict.Valid {
		r.observe(ctx, StateDone, nil)
		return Result{Violation: &verdict, Direction: guardrails.Output, Model: r.route.Model, Mode: mode}, nil
	}

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, err)
	}

	r.observe(ctx, StatePersist, nil)
	res := Result{Messages: produced, Model: r.route.Model, Mode: mode}
	for i, m := range produced {
		stored, err := r.store.Append(ctx, r.req.ChatID, m)
		if err != nil {
			o.opts.Logger.ErrorContext(ctx, "persist turn", "chat_id", r.req.ChatID, "error", err)
			res.PersistErr = err
			break
		}
		res.Messages[i] = stored
	}
	r.observe(ctx, StateDone, nil)

	return res, nil
}

// loop alternates dispatch and tool execution until the model answers with
// text. It returns the assistant-side messages, the final answer last.
func (r *run) loop(ctx context.Context, working *chat.Chat, system string, tools []toolbox.Tool, mode Mode) ([]message.Message, error) {
	o := r.o
	desc := r.route.Model

	toolReq := toolbox.Request{
		ChatID:   r.req.ChatID,
		Platform: r.store.Platform(),
		Model:    desc.ID,
		AppURL:   r.req.AppURL,
		User:     r.req.User,
	}

	var produced []message.Message

	for {
		r.observe(ctx, StateDispatch, nil)

		resp, err := o.dispatcher.Send(ctx, r.route, modeladapter.Request{
			System:   system,
			Messages: working.Readable(),
			Params:   r.req.Params,
			Tools:    tools,
		})
		if err != nil {
			return nil, err
		}

		if !resp.HasToolCalls() {
			if strings.TrimSpace(resp.Text) == "" {
				return nil, &EmptyResponseError{Model: desc.ID}
			}

			answer := r.assistant(resp, mode, content.Text{Text: resp.Text})
			answer.Citations = resp.Citations
			return append(produced, answer), nil
		}

		if r.round >= o.opts.MaxToolRounds {
			return nil, &ToolLoopExceededError{Rounds: o.opts.MaxToolRounds}
		}

		r.observe(ctx, StateToolExec, nil)

		var parts []content.Part
		if strings.TrimSpace(resp.Text) != "" {
			parts = append(parts, content.Text{Text: resp.Text})
		}
		for _, tc := range resp.ToolCalls {
			parts = append(parts, tc)
		}
		calls := r.assistant(resp, mode, parts...)

		results := o.opts.Tools.ExecuteAll(ctx, resp.ToolCalls, toolReq)

		step := []message.Message{calls}
		for _, res := range results {
			m := message.New(role.Tool, res)
			m.Mode = string(mode)
			m.Model = desc.ID
			step = append(step, m)
		}

		working.Append(step...)
		produced = append(produced, step...)
		r.round++
	}
}

func (r *run) assistant(resp modeladapter.Response, mode Mode, parts ...content.Part) message.Message {
	m := message.New(role.Assistant, parts...)
	m.Mode = string(mode)
	m.Model = r.route.Model.ID
	m.LogID = resp.LogID
	return m
}

// withText returns a copy of msg whose text is replaced by text, keeping
// attachments. An empty text leaves msg unchanged.
func withText(msg message.Message, text string) message.Message {
	if text == "" {
		return msg
	}

	parts := []content.Part{content.Text{Text: text}}
	for _, p := range msg.Parts {
		if _, ok := p.(content.Text); !ok {
			parts = append(parts, p)
		}
	}
	msg.Parts = parts
	return msg
}

func promptContext(u *toolbox.User) prompts.Context {
	var pc prompts.Context
	if u != nil && u.Latitude != nil && u.Longitude != nil {
		pc.Location = &prompts.Location{Latitude: *u.Latitude, Longitude: *u.Longitude}
	}
	return pc
}

func mergeCitations(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		for _, c := range l {
			if c != "" && !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	return out
}
