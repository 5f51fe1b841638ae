package api

import (
	"net/http"

	"github.com/xaenox/command-center/internal/commands"
)

// Healthz is the process liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SystemHealth serves the latest collected health snapshot.
func (h *Handler) SystemHealth(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.stats.Latest())
}

// ListCommands serves the slash command registry for compose-box
// autocomplete.
func (h *Handler) ListCommands(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, commands.Registry)
}
