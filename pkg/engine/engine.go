package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/dispatch"
	"github.com/germanamz/assistant/pkg/guardrails"
	"github.com/germanamz/assistant/pkg/history"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/monitoring"
	"github.com/germanamz/assistant/pkg/retrieval"
	"github.com/germanamz/assistant/pkg/router"
	"github.com/germanamz/assistant/pkg/tools/builtin"
	"github.com/germanamz/assistant/pkg/tools/mcpclient"
	"github.com/germanamz/assistant/pkg/tools/toolbox"
	"github.com/germanamz/assistant/pkg/turn"
	"github.com/google/uuid"
)

// Engine is the composition root that assembles all components from
// configuration and exposes them through a frontend-agnostic API.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	events       *EventBus
	monitor      *monitoring.Monitor
	usage        *usage.Tracker
	catalog      *models.Catalog
	dispatcher   *dispatch.Dispatcher
	senders      map[models.Provider]modeladapter.Sender
	history      history.Backend
	tools        *toolbox.ToolBox
	ingester     retrieval.Ingester
	orchestrator *turn.Orchestrator
	mcpClients   []*mcpclient.MCPClient
	closers      []io.Closer

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an Engine from the given configuration. It validates the
// config, creates provider senders, connects MCP clients and wires the turn
// orchestrator. Call Run to start metric forwarding and Close when done.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		events:  NewEventBus(),
		usage:   &usage.Tracker{},
		senders: make(map[models.Provider]modeladapter.Sender, len(cfg.Providers)),
		monitor: monitoring.New(monitoring.Options{
			Capacity: cfg.Monitoring.Capacity,
			Buffer:   cfg.Monitoring.Buffer,
			Sinks:    []monitoring.Sink{monitoring.SlogSink{Logger: logger, Level: slog.LevelDebug}},
			Logger:   logger,
		}),
		sessions: make(map[string]*Session),
	}

	builtins := models.Builtin()
	e.dispatcher = dispatch.New(builtins, dispatch.Options{Monitor: e.monitor, Usage: e.usage, Logger: logger})

	// Build provider senders.
	configured := make([]models.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		s, err := buildSender(ctx, pc)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("engine: provider %q: %w", pc.Kind, err)
		}
		if c, ok := s.(io.Closer); ok {
			e.closers = append(e.closers, c)
		}
		if err := e.dispatcher.Register(pc.Kind, s); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.senders[pc.Kind] = s
		configured = append(configured, pc.Kind)
	}
	e.catalog = builtins.Restrict(configured...)

	guard, err := e.buildGuard()
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	switch cfg.History.Backend {
	case "file":
		e.history = history.NewFile(cfg.History.Dir)
	case "sql":
		store, err := history.OpenSQL(cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.closers = append(e.closers, store)
		e.history = store
	default:
		e.history = history.NewMemory()
	}

	var retriever retrieval.Retriever
	if cfg.Retrieval.Enabled {
		kb, err := retrieval.NewKnowledgeBase(cfg.Retrieval.Bedrock)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}
		retriever = kb

		if cfg.Retrieval.Bedrock.DataSourceID != "" {
			ing, err := retrieval.NewIngester(cfg.Retrieval.Bedrock)
			if err != nil {
				_ = e.Close()
				return nil, fmt.Errorf("engine: %w", err)
			}
			e.ingester = ing
		}
	}

	if err := e.buildTools(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}

	middleware, err := buildMiddleware(cfg.Middleware, logger)
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	prefs := make(map[router.Intent][]string, len(cfg.Routing.Preferences))
	for intent, ids := range cfg.Routing.Preferences {
		prefs[router.Intent(intent)] = ids
	}

	e.orchestrator = turn.New(e.dispatcher, turn.Options{
		Selector:     router.New(e.catalog, router.Options{Preferences: prefs, Logger: logger}),
		DefaultModel: cfg.DefaultModel,
		History:      e.history,
		Guard:        guard,
		Tools:        e.tools,
		Retriever:    retriever,
		RetrievalOptions: retrieval.Options{
			TopK:           cfg.Retrieval.TopK,
			ScoreThreshold: cfg.Retrieval.ScoreThreshold,
		},
		MaxToolRounds: cfg.MaxToolRounds,
		Observer:      e.events.Observer(),
		Monitor:       e.monitor,
		Logger:        logger,
		Middleware:    middleware,
	})

	return e, nil
}

// buildGuard selects the policy backend. Classifier checks run on the
// workers provider.
func (e *Engine) buildGuard() (*guardrails.Checker, error) {
	gc := e.cfg.Guardrails
	if !gc.Enabled {
		return guardrails.Disabled(), nil
	}

	opts := guardrails.Options{Enabled: true, Monitor: e.monitor, Logger: e.logger}

	if gc.Backend == "bedrock" {
		b, err := guardrails.NewBedrock(gc.Bedrock)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		return guardrails.New("bedrock", b, opts), nil
	}

	b := &guardrails.ClassifierBackend{Sender: e.senders[models.Workers], Model: gc.ClassifierModel}
	return guardrails.New("classifier", b, opts), nil
}

// buildTools assembles the built-in tools and every MCP server's tools into
// one toolbox.
func (e *Engine) buildTools(ctx context.Context) error {
	tc := e.cfg.Tools

	var timeout time.Duration
	if tc.Timeout != "" {
		timeout, _ = time.ParseDuration(tc.Timeout)
	}

	bc := builtin.Config{
		WeatherAPIKey: tc.WeatherAPIKey,
		Extract:       tc.Extract,
		Summarizer:    builtin.SummarizerFunc(e.Summarize),
		Ingester:      e.ingester,
	}
	if tc.Media {
		p, ok := e.senders[models.Replicate].(builtin.Predictor)
		if !ok {
			return fmt.Errorf("engine: media tools: replicate sender cannot run predictions")
		}
		bc.Predictor = p
	}

	e.tools = builtin.New(bc, toolbox.Options{Timeout: timeout, Logger: e.logger})

	for _, sc := range e.cfg.MCPServers {
		client, err := mcpclient.Connect(ctx, sc)
		if err != nil {
			return fmt.Errorf("engine: mcp %q: %w", sc.Name, err)
		}
		e.mcpClients = append(e.mcpClients, client)

		tools, err := client.ListTools(ctx)
		if err != nil {
			return fmt.Errorf("engine: mcp %q: list tools: %w", sc.Name, err)
		}
		e.tools.Register(tools...)
	}

	return nil
}

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// Monitor returns the engine's metric store.
func (e *Engine) Monitor() *monitoring.Monitor { return e.monitor }

// Usage returns the per-model token totals since start.
func (e *Engine) Usage() *usage.Tracker { return e.usage }

// Tools returns the toolbox offered to models.
func (e *Engine) Tools() *toolbox.ToolBox { return e.tools }

// Models returns the models whose provider is configured.
func (e *Engine) Models() []models.Descriptor { return e.catalog.All() }

// Platform returns the default history platform.
func (e *Engine) Platform() string {
	if e.cfg.Platform == "" {
		return history.DefaultPlatform
	}
	return e.cfg.Platform
}

// Run forwards metrics to the sinks until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.monitor.Run(ctx)
}

// ProcessTurn runs one turn, filling in the configured platform and app URL
// when the request leaves them empty. Progress is published on the event bus.
func (e *Engine) ProcessTurn(ctx context.Context, req turn.Request) (turn.Result, error) {
	if req.Platform == "" {
		req.Platform = e.Platform()
	}
	if req.AppURL == "" {
		req.AppURL = e.cfg.AppURL
	}

	e.events.Publish(Event{Kind: EventTurnStart, ChatID: req.ChatID, Model: req.Model, Timestamp: time.Now(), Data: req.Input})

	res, err := e.orchestrator.ProcessTurn(ctx, req)

	now := time.Now()
	switch {
	case err != nil:
		e.events.Publish(Event{Kind: EventError, ChatID: req.ChatID, Model: req.Model, Timestamp: now, Data: err})
	case res.Violation != nil:
		e.events.Publish(Event{Kind: EventViolation, ChatID: req.ChatID, Model: res.Model.ID, Timestamp: now, Data: res})
	default:
		for _, m := range res.Messages {
			e.events.Publish(Event{Kind: EventMessageAdded, ChatID: req.ChatID, Model: res.Model.ID, Timestamp: now, Data: m})
		}
	}
	e.events.Publish(Event{Kind: EventTurnEnd, ChatID: req.ChatID, Model: res.Model.ID, Timestamp: now})

	return res, err
}

// History returns a chat's stored messages. model may be an id or alias; an
// empty platform means the configured one.
func (e *Engine) History(ctx context.Context, platform, model, chatID string) ([]message.Message, error) {
	desc, err := e.catalog.Lookup(model)
	if err != nil {
		return nil, err
	}
	if platform == "" {
		platform = e.Platform()
	}

	return history.Open(e.history, platform, desc.ID).Read(ctx, chatID)
}

// NewSession starts a conversation with a fresh chat id. An empty model
// lets the first turn's selection decide.
func (e *Engine) NewSession(model string) *Session {
	s := newSession(uuid.NewString(), model, e)

	e.mu.Lock()
	e.sessions[s.ID()] = s
	e.mu.Unlock()

	return s
}

// Session returns an existing session by ID.
func (e *Engine) Session(id string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	return s, ok
}

// CloseSession forgets a session. Its history stays in the backend.
func (e *Engine) CloseSession(id string) {
	e.mu.Lock()
	delete(e.sessions, id)
	e.mu.Unlock()
}

// Close shuts down MCP clients and provider clients.
func (e *Engine) Close() error {
	var firstErr error
	for _, c := range e.mcpClients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, c := range e.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
