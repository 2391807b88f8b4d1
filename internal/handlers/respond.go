package handlers

import (
	"encoding/json"
	"net/http"

	"photomap/internal/logging"
	"photomap/internal/startup"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// respond writes v as a JSON body with the given status code. The body is
// omitted for HEAD requests.
func respond(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, code int, message string) {
	respond(w, r, code, errorResponse{Error: message})
}

func respondStatus(w http.ResponseWriter, r *http.Request, code int, status string) {
	respond(w, r, code, statusResponse{Status: status})
}

// GetVersion returns the build information.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	respond(w, r, http.StatusOK, startup.GetBuildInfo())
}
