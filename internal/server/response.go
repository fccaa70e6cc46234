// internal/server/response.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/avivl/editwarning/internal/coordinator"
	"github.com/avivl/editwarning/internal/host"
	"github.com/avivl/editwarning/internal/store"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Errors []string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func writeErrorResponse(w http.ResponseWriter, code int, message string, additional ...string) {
	writeJSON(w, code, ErrorResponse{Errors: append([]string{message}, additional...)})
}

// writeError maps domain errors onto status codes. Store failures are 503 so
// the host can carry on without lock protection.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, host.ErrPageNotFound):
		writeErrorResponse(w, http.StatusNotFound, "page not found")
	case errors.Is(err, coordinator.ErrInvalidRequest):
		writeErrorResponse(w, http.StatusBadRequest, "invalid request", err.Error())
	case errors.Is(err, store.ErrStoreUnavailable), errors.Is(err, store.ErrKeyModified):
		s.logger.WarnCtx(r.Context(), "lock store unavailable", "error", err, "request_id", RequestID(r.Context()))
		writeErrorResponse(w, http.StatusServiceUnavailable, "lock store temporarily unavailable")
	default:
		s.logger.ErrorCtx(r.Context(), err, "request_id", RequestID(r.Context()))
		writeErrorResponse(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}
