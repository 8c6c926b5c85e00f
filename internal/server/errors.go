package server

import (
	"errors"
	"net/http"

	"github.com/tracefit/tracefit/internal/fit"
	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/trace"
)

// errorBody is the uniform error envelope.
type errorBody struct {
	Error    string   `json:"error"`
	Blockers []string `json:"blockers,omitempty"`
}

// writeError maps the engine error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var blocked *fit.SignOffBlockedError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, schema.ErrUnknownEntityType),
		errors.Is(err, trace.ErrDepthOutOfRange):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, fit.ErrPendingChildren):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Blockers: blocked.Blockers})
	case errors.Is(err, fit.ErrMissingRationale),
		errors.Is(err, fit.ErrInvalidDecision),
		errors.Is(err, fit.ErrNotLevelFour),
		errors.Is(err, fit.ErrNotLevelThree),
		errors.Is(err, fit.ErrNotLevelTwo),
		errors.Is(err, storage.ErrLevelMismatch),
		errors.Is(err, storage.ErrDuplicateCode):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// writeBadRequest reports malformed input (unparsable body, bad parameters).
func (s *Server) writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}
