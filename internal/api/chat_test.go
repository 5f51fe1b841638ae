package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/blob"
	"github.com/xaenox/command-center/internal/gateway"
	"github.com/xaenox/command-center/internal/models"
	"github.com/xaenox/command-center/internal/realtime"
	"github.com/xaenox/command-center/internal/stats"
	"github.com/xaenox/command-center/internal/storage"
)

type testEnv struct {
	store    *storage.MemoryStorage
	router   http.Handler
	upstream *httptest.Server
}

// newTestEnv builds the full handler stack over in-memory storage and a
// fake completions gateway.
func newTestEnv(t *testing.T, upstream http.HandlerFunc) *testEnv {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	store := storage.NewMemoryStorage()
	gw := gateway.NewClient(gateway.Options{URL: srv.URL, Model: "openclaw:main"}, logger)
	hub := realtime.NewHub(logger)

	blobs, err := blob.NewFSStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	collector := stats.NewCollector(store, gw, logger)
	h := NewHandler(store, gw, hub, blobs, collector, "Titus", "Cody", logger)
	router := NewRouter(h, hub, blobs.Dir(), "", logger)

	return &testEnv{store: store, router: router, upstream: srv}
}

func (e *testEnv) chat(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) messageCount(t *testing.T, threadID string) int {
	t.Helper()
	count, err := e.store.CountThreadMessages(context.Background(), threadID)
	require.NoError(t, err)
	return count
}

func TestChatRejectsMissingFields(t *testing.T) {
	var gatewayCalled atomic.Bool
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		gatewayCalled.Store(true)
	})

	for _, body := range []string{
		`{}`,
		`{"threadId":"t1"}`,
		`{"message":"hello"}`,
		`{"threadId":"t1","message":"   "}`,
	} {
		rec := env.chat(t, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}

	stats, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Messages, "validation failures must not produce store writes")
	assert.False(t, gatewayCalled.Load(), "gateway must not be called for invalid input")
}

func TestChatUserMessageSurvivesGatewayFailure(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	rec := env.chat(t, `{"threadId":"t1","message":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Error       string          `json:"error"`
		UserMessage *models.Message `json:"userMessage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Gateway unavailable", resp.Error)
	require.NotNil(t, resp.UserMessage, "the caller's own text must not be lost")
	assert.Equal(t, "hello", resp.UserMessage.Content)

	assert.Equal(t, 1, env.messageCount(t, "t1"), "the user turn stays persisted")
}

func TestChatNonStreamingSuccess(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hi from the agent"}}]}`)
	})

	rec := env.chat(t, `{"threadId":"t1","message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "hi from the agent", resp.AIResponse)
	require.NotNil(t, resp.UserMessage)
	assert.Equal(t, "Cody", resp.UserMessage.AgentName)

	require.Equal(t, 2, env.messageCount(t, "t1"))
	msgs, err := env.store.GetThreadMessages(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Titus", msgs[1].AgentName)
	assert.Equal(t, "hi from the agent", msgs[1].Content)
}

func decodeFrames(t *testing.T, body string) []map[string]interface{} {
	t.Helper()
	var frames []map[string]interface{}
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		frames = append(frames, frame)
	}
	return frames
}

func TestChatStreamingAccumulatesAndPersists(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	rec := env.chat(t, `{"threadId":"t1","message":"hello","stream":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	frames := decodeFrames(t, rec.Body.String())
	require.Len(t, frames, 3)
	assert.Equal(t, "Hel", frames[0]["content"])
	assert.Equal(t, "lo", frames[1]["content"])
	assert.Equal(t, true, frames[2]["done"])

	// One user turn plus exactly one accumulated assistant row.
	require.Equal(t, 2, env.messageCount(t, "t1"))
	msgs, err := env.store.GetThreadMessages(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", msgs[1].Content)
	assert.Equal(t, "Titus", msgs[1].AgentName)
}

func TestChatStreamingToleratesMalformedFrames(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: %%% not json %%%\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	rec := env.chat(t, `{"threadId":"t1","message":"hello","stream":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	msgs, err := env.store.GetThreadMessages(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[1].Content, "malformed frames must not leak into the accumulated text")
}

func TestChatStreamingUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	rec := env.chat(t, `{"threadId":"t1","message":"hello","stream":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	frames := decodeFrames(t, rec.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, "Gateway unavailable", frames[0]["error"])

	// The user turn is persisted; no assistant row exists.
	assert.Equal(t, 1, env.messageCount(t, "t1"))
}
