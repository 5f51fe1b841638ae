package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/blob"
	"github.com/xaenox/command-center/internal/gateway"
	"github.com/xaenox/command-center/internal/realtime"
	"github.com/xaenox/command-center/internal/stats"
	"github.com/xaenox/command-center/internal/storage"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store   storage.Storage
	gateway *gateway.Client
	hub     *realtime.Hub
	blobs   blob.Store
	stats   *stats.Collector
	logger  *zap.Logger

	// AssistantLabel is the sender label attached to gateway replies;
	// OperatorLabel is the default for relayed user turns.
	assistantLabel string
	operatorLabel  string
}

func NewHandler(
	store storage.Storage,
	gw *gateway.Client,
	hub *realtime.Hub,
	blobs blob.Store,
	collector *stats.Collector,
	assistantLabel, operatorLabel string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		store:          store,
		gateway:        gw,
		hub:            hub,
		blobs:          blobs,
		stats:          collector,
		logger:         logger,
		assistantLabel: assistantLabel,
		operatorLabel:  operatorLabel,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
