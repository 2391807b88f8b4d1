package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"photomap/internal/lifecycle"
	"photomap/internal/logging"
)

// ListFailed returns every file in the failed directory with its parsed
// diagnostic.
func (h *Handlers) ListFailed(w http.ResponseWriter, r *http.Request) {
	files, err := lifecycle.ListFailed(h.config.FailedDir, h.config.Retry)
	if err != nil {
		logging.Error("Failed to list failed directory: %v", err)
		respondError(w, r, http.StatusInternalServerError, "failed to list failed files")
		return
	}
	if files == nil {
		files = []lifecycle.FailedFile{}
	}

	respond(w, r, http.StatusOK, files)
}

// RequeueFailed moves one failed file back into the incoming directory.
func (h *Handlers) RequeueFailed(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	err := lifecycle.Requeue(h.config.FailedDir, h.config.IncomingDir, name, h.config.Retry)
	switch {
	case err == nil:
		respondStatus(w, r, http.StatusOK, "requeued")
	case errors.Is(err, lifecycle.ErrInvalidName):
		respondError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrAlreadyQueued):
		respondError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, os.ErrNotExist):
		respondError(w, r, http.StatusNotFound, "no such failed file")
	default:
		logging.Error("Failed to requeue %s: %v", name, err)
		respondError(w, r, http.StatusInternalServerError, "failed to requeue file")
	}
}
