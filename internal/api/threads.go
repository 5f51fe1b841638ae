package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/models"
	"github.com/xaenox/command-center/internal/storage"
)

const defaultThreadTitle = "New Thread"

type CreateThreadRequest struct {
	AgentID string `json:"agentId"`
	Title   string `json:"title,omitempty"`
}

type UpdateThreadRequest struct {
	Title  *string `json:"title,omitempty"`
	Pinned *bool   `json:"pinned,omitempty"`
}

// ListThreads returns one agent's threads, pinned first, most recent first.
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent")
	if agentID == "" {
		h.Error(w, http.StatusBadRequest, "missing agent parameter")
		return
	}

	threads, err := h.store.ListThreads(r.Context(), agentID)
	if err != nil {
		h.logger.Error("Failed to list threads", zap.Error(err), zap.String("agent_id", agentID))
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if threads == nil {
		threads = []*models.Thread{}
	}

	h.JSON(w, http.StatusOK, threads)
}

func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	var req CreateThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AgentID == "" {
		h.Error(w, http.StatusBadRequest, "agentId is required")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultThreadTitle
	}

	thread := &models.Thread{
		ID:      uuid.New().String(),
		AgentID: req.AgentID,
		Title:   title,
	}
	if err := h.store.CreateThread(r.Context(), thread); err != nil {
		h.logger.Error("Failed to create thread", zap.Error(err), zap.String("agent_id", req.AgentID))
		h.Error(w, http.StatusInternalServerError, "failed to create thread")
		return
	}

	h.JSON(w, http.StatusCreated, thread)
}

func (h *Handler) UpdateThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			h.Error(w, http.StatusBadRequest, "title cannot be empty")
			return
		}
		if err := h.store.RenameThread(r.Context(), id, title); err != nil {
			h.threadUpdateError(w, err, id)
			return
		}
	}

	if req.Pinned != nil {
		if err := h.store.SetThreadPinned(r.Context(), id, *req.Pinned); err != nil {
			h.threadUpdateError(w, err, id)
			return
		}
	}

	thread, err := h.store.GetThread(r.Context(), id)
	if err != nil {
		h.threadUpdateError(w, err, id)
		return
	}

	h.JSON(w, http.StatusOK, thread)
}

func (h *Handler) threadUpdateError(w http.ResponseWriter, err error, id string) {
	if errors.Is(err, storage.ErrNotFound) {
		h.Error(w, http.StatusNotFound, "thread not found")
		return
	}
	h.logger.Error("Failed to update thread", zap.Error(err), zap.String("thread_id", id))
	h.Error(w, http.StatusInternalServerError, "database error")
}

func (h *Handler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteThread(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete thread", zap.Error(err), zap.String("thread_id", id))
		h.Error(w, http.StatusInternalServerError, "failed to delete thread")
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ClearThreadMessages deletes a thread's history in bulk.
func (h *Handler) ClearThreadMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.ClearThreadMessages(r.Context(), id); err != nil {
		h.logger.Error("Failed to clear thread", zap.Error(err), zap.String("thread_id", id))
		h.Error(w, http.StatusInternalServerError, "failed to clear thread")
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
