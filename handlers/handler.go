package handlers

import (
	"blogging/logging"
	"blogging/storage"
	"blogging/tasks"
	"net/http"
	"time"
)

const INTERNAL_ERROR_MESSAGE = "Internal server error."

type HTTPHandler struct {
	Storage  storage.Storage
	Tasks    tasks.Dispatcher
	Logger   logging.Logger
	Secret   []byte
	TokenTTL time.Duration
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.Storage.Ping(r.Context()); err != nil {
		h.Logger.Error(r.Context(), "health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Storage is unavailable.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
