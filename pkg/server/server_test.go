package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/guardrails"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/retrieval"
	"github.com/germanamz/assistant/pkg/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu       sync.Mutex
	requests []turn.Request
	result   turn.Result
	err      error
	history  map[string][]message.Message
}

func (f *fakeBackend) ProcessTurn(_ context.Context, req turn.Request) (turn.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.err != nil {
		return turn.Result{}, f.err
	}
	res := f.result
	if res.Messages == nil && res.Violation == nil {
		res.Messages = []message.Message{message.NewText(role.Assistant, "echo: "+req.Input)}
	}
	return res, nil
}

func (f *fakeBackend) History(_ context.Context, platform, model, chatID string) ([]message.Message, error) {
	if model != "claude-3.5-haiku" {
		return nil, &models.UnknownModelError{Model: model}
	}
	return f.history[platform+"/"+chatID], nil
}

func (f *fakeBackend) Models() []models.Descriptor {
	return []models.Descriptor{{ID: "claude-3.5-haiku"}, {ID: "claude-3.5-sonnet"}}
}

func (f *fakeBackend) lastRequest(t *testing.T) turn.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestServer(t *testing.T, b *fakeBackend) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(b, Options{}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data)) //nolint:gosec,noctx // test server URL
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{})

	resp, err := http.Get(srv.URL + "/status") //nolint:noctx // test
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Status string   `json:"status"`
		Models []string `json:"models"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, []string{"claude-3.5-haiku", "claude-3.5-sonnet"}, out.Models)
}

func TestChat(t *testing.T) {
	b := &fakeBackend{}
	srv := newTestServer(t, b)

	resp, out := postJSON(t, srv.URL+"/chat", map[string]any{
		"chatId":   "c1",
		"input":    "hello",
		"model":    "claude",
		"budget":   "medium",
		"mode":     "prompt_coach",
		"platform": "web",
		"params":   map[string]any{"temperature": 0.2},
		"useRag":   true,
		"user":     map[string]any{"email": "a@b.c"},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "c1", out["chatId"])

	msgs, ok := out["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, "echo: hello", msgs[0].(map[string]any)["content"])

	req := b.lastRequest(t)
	assert.Equal(t, "c1", req.ChatID)
	assert.Equal(t, "claude", req.Model)
	require.NotNil(t, req.Budget)
	assert.Equal(t, models.Medium, *req.Budget)
	assert.Equal(t, turn.PromptCoach, req.Mode)
	assert.Equal(t, "web", req.Platform)
	require.NotNil(t, req.Params.Temperature)
	assert.InDelta(t, 0.2, *req.Params.Temperature, 1e-9)
	assert.True(t, req.UseRAG)
	require.NotNil(t, req.User)
	assert.Equal(t, "a@b.c", req.User.Email)
}

func TestChat_Attachments(t *testing.T) {
	b := &fakeBackend{}
	srv := newTestServer(t, b)

	resp, _ := postJSON(t, srv.URL+"/chat", map[string]any{
		"chatId": "c1",
		"input":  "what is this?",
		"attachments": []map[string]any{
			{"type": "image", "url": "https://img.example/cat.png"},
			{"type": "audio", "data": []byte("RIFF"), "mediaType": "audio/wav"},
		},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := b.lastRequest(t)
	require.Len(t, req.Attachments, 2)
	assert.Equal(t, content.Image{URL: "https://img.example/cat.png"}, req.Attachments[0])
	assert.Equal(t, content.Audio{Data: []byte("RIFF"), MediaType: "audio/wav"}, req.Attachments[1])
}

func TestChat_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad budget", map[string]any{"chatId": "c1", "input": "x", "budget": "priceless"}},
		{"bad mode", map[string]any{"chatId": "c1", "input": "x", "mode": "yolo"}},
		{"bad role", map[string]any{"chatId": "c1", "input": "x", "role": "narrator"}},
		{"bad attachment type", map[string]any{"chatId": "c1", "input": "x", "attachments": []map[string]any{{"type": "video", "url": "u"}}}},
		{"empty attachment", map[string]any{"chatId": "c1", "input": "x", "attachments": []map[string]any{{"type": "image"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			srv := newTestServer(t, b)

			resp, out := postJSON(t, srv.URL+"/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
			assert.Empty(t, b.requests)
		})
	}
}

func TestChat_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{})

	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader("{")) //nolint:noctx // test
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChat_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &turn.ValidationError{Field: "chatId", Reason: "is required"}, http.StatusBadRequest},
		{"tool loop", &turn.ToolLoopExceededError{Rounds: 5}, http.StatusLoopDetected},
		{"guard backend", &guardrails.BackendError{Backend: "classifier", Err: errors.New("down")}, http.StatusServiceUnavailable},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeBackend{err: tt.err})

			resp, out := postJSON(t, srv.URL+"/chat", map[string]any{"chatId": "c1", "input": "x"})
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, tt.err.Error(), out["error"])
		})
	}
}

func TestChat_Violation(t *testing.T) {
	b := &fakeBackend{result: turn.Result{
		Violation: &guardrails.Result{Valid: false, Violations: []string{"Violence and Hate"}},
		Direction: guardrails.Input,
	}}
	srv := newTestServer(t, b)

	resp, out := postJSON(t, srv.URL+"/chat", map[string]any{"chatId": "c1", "input": "x"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "INPUT", out["direction"])

	v, ok := out["violation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, v["isValid"])
	assert.Equal(t, []any{"Violence and Hate"}, v["violations"])
	assert.Nil(t, out["messages"])
}

func TestChat_PersistWarning(t *testing.T) {
	b := &fakeBackend{result: turn.Result{
		Messages:   []message.Message{message.NewText(role.Assistant, "hi")},
		PersistErr: errors.New("disk full"),
	}}
	srv := newTestServer(t, b)

	resp, out := postJSON(t, srv.URL+"/chat", map[string]any{"chatId": "c1", "input": "x"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out["warning"], "disk full")
}

func TestHistory(t *testing.T) {
	b := &fakeBackend{history: map[string][]message.Message{
		"slack/c1": {message.NewText(role.User, "hi"), message.NewText(role.Assistant, "hello")},
	}}
	srv := newTestServer(t, b)

	resp, err := http.Get(srv.URL + "/chat/c1?model=claude-3.5-haiku&platform=slack") //nolint:noctx // test
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		ChatID   string            `json:"chatId"`
		Messages []message.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "c1", out.ChatID)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "hello", out.Messages[1].TextContent())
}

func TestHistory_Errors(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{})

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing model", "/chat/c1", http.StatusBadRequest},
		{"unknown model", "/chat/c1?model=nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path) //nolint:noctx // test
			require.NoError(t, err)
			defer resp.Body.Close() //nolint:errcheck // test

			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHistory_EmptyChat(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{})

	resp, err := http.Get(srv.URL + "/chat/none?model=claude-3.5-haiku") //nolint:noctx // test
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []any{}, out["messages"])
}

func TestWebSocket(t *testing.T) {
	b := &fakeBackend{}
	srv := newTestServer(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow() //nolint:errcheck // test

	for _, input := range []string{"one", "two"} {
		require.NoError(t, wsjson.Write(ctx, conn, TurnRequest{ChatID: "c1", Input: input}))

		var reply wsReply
		require.NoError(t, wsjson.Read(ctx, conn, &reply))
		assert.Equal(t, http.StatusOK, reply.Status)
		require.Len(t, reply.Messages, 1)
		assert.Equal(t, "echo: "+input, reply.Messages[0].TextContent())
	}

	require.NoError(t, wsjson.Write(ctx, conn, TurnRequest{ChatID: "c1", Input: "x", Mode: "bogus"}))
	var reply wsReply
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, http.StatusBadRequest, reply.Status)
	assert.NotEmpty(t, reply.Error)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	assert.Len(t, b.requests, 2)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s := New(&fakeBackend{}, Options{ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

type fakeKnowledge struct {
	docs []retrieval.IngestDocument
	err  error
}

func (f *fakeKnowledge) Ingest(_ context.Context, doc retrieval.IngestDocument) (retrieval.Ingested, error) {
	if f.err != nil {
		return retrieval.Ingested{}, f.err
	}
	f.docs = append(f.docs, doc)
	return retrieval.Ingested{ID: "doc-1", Type: doc.Type, Title: doc.Title, Status: "STARTING"}, nil
}

func newKnowledgeServer(t *testing.T, k *fakeKnowledge) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(&fakeBackend{}, Options{Knowledge: k}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestIngest(t *testing.T) {
	k := &fakeKnowledge{}
	srv := newKnowledgeServer(t, k)

	resp, out := postJSON(t, srv.URL+"/knowledge/documents", map[string]any{
		"type":     "note",
		"title":    "Tides",
		"content":  "The Moon pulls the oceans.",
		"metadata": map[string]string{"source": "atlas"},
	})

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "success", out["status"])
	data, ok := out["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "doc-1", data["id"])

	require.Len(t, k.docs, 1)
	assert.Equal(t, "Tides", k.docs[0].Title)
	assert.Equal(t, "atlas", k.docs[0].Metadata["source"])
}

func TestIngest_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", fmt.Errorf("%w: type is required", retrieval.ErrInvalidDocument), http.StatusBadRequest},
		{"disabled", retrieval.ErrIngestDisabled, http.StatusServiceUnavailable},
		{"upstream", errors.New("throttled"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newKnowledgeServer(t, &fakeKnowledge{err: tt.err})

			resp, out := postJSON(t, srv.URL+"/knowledge/documents", map[string]any{"type": "note", "content": "x"})

			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Contains(t, out["error"], tt.err.Error())
		})
	}
}

func TestIngest_RouteOnlyWhenConfigured(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{})

	resp, err := http.Post(srv.URL+"/knowledge/documents", "application/json", strings.NewReader(`{}`)) //nolint:gosec,noctx // test server URL
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
