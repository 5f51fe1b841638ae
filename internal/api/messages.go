package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/models"
)

type InsertMessageRequest struct {
	ThreadID  string `json:"threadId"`
	Content   string `json:"content"`
	AgentName string `json:"agentName,omitempty"`
}

// ListMessages returns a thread's messages oldest first. This is the poll
// fallback's read path.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")

	messages, err := h.store.GetThreadMessages(r.Context(), threadID)
	if err != nil {
		h.logger.Error("Failed to list messages", zap.Error(err), zap.String("thread_id", threadID))
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	h.JSON(w, http.StatusOK, messages)
}

// InsertMessage appends a message row without involving the gateway: the
// pure-history path used when no live reply is wanted.
func (h *Handler) InsertMessage(w http.ResponseWriter, r *http.Request) {
	var req InsertMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ThreadID == "" || strings.TrimSpace(req.Content) == "" {
		h.Error(w, http.StatusBadRequest, "Missing required fields: threadId, content")
		return
	}

	sender := req.AgentName
	if sender == "" {
		sender = h.operatorLabel
	}

	msg := &models.Message{
		ID:        uuid.New().String(),
		ThreadID:  req.ThreadID,
		AgentName: sender,
		Content:   req.Content,
		Metadata: models.MessageMetadata{
			Source:    "command-center",
			Timestamp: time.Now().Format(time.RFC3339),
		},
	}
	if err := h.store.SaveMessage(r.Context(), msg); err != nil {
		h.logger.Error("Failed to save message", zap.Error(err), zap.String("thread_id", req.ThreadID))
		h.Error(w, http.StatusInternalServerError, "Failed to save message")
		return
	}
	h.hub.Publish(msg)

	if err := h.store.TouchThread(r.Context(), req.ThreadID); err != nil {
		h.logger.Warn("Failed to touch thread", zap.Error(err), zap.String("thread_id", req.ThreadID))
	}

	h.JSON(w, http.StatusCreated, msg)
}
