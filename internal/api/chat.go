package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/gateway"
	"github.com/xaenox/command-center/internal/models"
)

// ChatRequest is the relay's input: one user turn for one thread.
type ChatRequest struct {
	ThreadID  string `json:"threadId"`
	Message   string `json:"message"`
	AgentName string `json:"agentName,omitempty"`
	Stream    bool   `json:"stream,omitempty"`
}

// ChatResponse is the non-streaming relay result.
type ChatResponse struct {
	Success     bool            `json:"success"`
	UserMessage *models.Message `json:"userMessage"`
	AIResponse  string          `json:"aiResponse"`
}

// Chat relays one chat turn: persist the user message, forward it to the
// completions gateway, persist the reply. With stream=true the reply is
// relayed token-by-token as an event stream instead.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.ThreadID == "" || strings.TrimSpace(req.Message) == "" {
		h.Error(w, http.StatusBadRequest, "Missing required fields: threadId, message")
		return
	}

	sender := req.AgentName
	if sender == "" {
		sender = h.operatorLabel
	}

	// 1. Persist the user turn. Nothing goes upstream if this fails.
	userMsg := &models.Message{
		ID:        uuid.New().String(),
		ThreadID:  req.ThreadID,
		AgentName: sender,
		Content:   req.Message,
		Metadata: models.MessageMetadata{
			Source:    "command-center-api",
			Timestamp: time.Now().Format(time.RFC3339),
		},
	}
	if err := h.store.SaveMessage(r.Context(), userMsg); err != nil {
		h.logger.Error("Failed to save user message",
			zap.Error(err),
			zap.String("thread_id", req.ThreadID))
		h.Error(w, http.StatusInternalServerError, "Failed to save message")
		return
	}
	h.hub.Publish(userMsg)

	// 2. Touch the thread; best-effort bookkeeping.
	if err := h.store.TouchThread(r.Context(), req.ThreadID); err != nil {
		h.logger.Warn("Failed to touch thread",
			zap.Error(err),
			zap.String("thread_id", req.ThreadID))
	}

	turn := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: req.Message},
	}

	if req.Stream {
		h.streamChat(w, r, req.ThreadID, turn)
		return
	}

	// 3. Non-streaming: one round trip to the gateway.
	aiResponse, err := h.gateway.Complete(r.Context(), turn)
	if err != nil {
		h.logger.Error("Gateway call failed",
			zap.Error(err),
			zap.String("thread_id", req.ThreadID))
		h.JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":       "Gateway unavailable",
			"userMessage": userMsg,
		})
		return
	}

	// 4. Persist the assistant turn. The caller's own message already
	// round-tripped, so a failure here is logged only.
	if aiResponse != "" {
		h.persistAssistantTurn(r, req.ThreadID, aiResponse)
	}

	h.JSON(w, http.StatusOK, ChatResponse{
		Success:     true,
		UserMessage: userMsg,
		AIResponse:  aiResponse,
	})
}

func (h *Handler) persistAssistantTurn(r *http.Request, threadID, content string) {
	aiMsg := &models.Message{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		AgentName: h.assistantLabel,
		Content:   content,
		Metadata: models.MessageMetadata{
			Source:    "gateway",
			Timestamp: time.Now().Format(time.RFC3339),
		},
	}
	if err := h.store.SaveMessage(r.Context(), aiMsg); err != nil {
		h.logger.Error("Failed to save assistant message",
			zap.Error(err),
			zap.String("thread_id", threadID))
		return
	}
	h.hub.Publish(aiMsg)

	if err := h.store.TouchThread(r.Context(), threadID); err != nil {
		h.logger.Warn("Failed to touch thread",
			zap.Error(err),
			zap.String("thread_id", threadID))
	}
}

// streamFrame is one relay-emitted SSE payload.
type streamFrame struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done,omitempty"`
}

func (h *Handler) streamChat(w http.ResponseWriter, r *http.Request, threadID string, turn []openai.ChatCompletionMessage) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(frame streamFrame) {
		payload, err := json.Marshal(frame)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	full, err := h.gateway.Stream(r.Context(), turn, func(delta string) {
		emit(streamFrame{Content: delta})
	})
	if err != nil {
		// The upstream failed before any reply data arrived.
		h.logger.Error("Gateway stream failed",
			zap.Error(err),
			zap.String("thread_id", threadID))
		message := "Gateway unavailable"
		if !errors.Is(err, gateway.ErrUnavailable) {
			message = "Gateway stream failed"
		}
		emit(streamFrame{Error: message})
		return
	}

	if full != "" {
		h.persistAssistantTurn(r, threadID, full)
	}
	emit(streamFrame{Done: true})
}
