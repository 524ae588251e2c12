package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"example.com/reactivities/internal/errorx"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Type   string            `json:"type"`
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Type: "request_cancelled", Detail: err.Error()})
		return
	}

	e, ok := errorx.As(err)
	if !ok {
		e = errorx.Internal(err)
	}
	resp := ErrorResponse{Type: string(e.Kind), Detail: e.Message, Errors: e.Fields}

	status := http.StatusInternalServerError
	switch e.Kind {
	case errorx.KindValidation, errorx.KindBadRequest:
		status = http.StatusBadRequest
	case errorx.KindNotFound:
		status = http.StatusNotFound
		if e.Field != "" {
			resp.Errors = map[string]string{e.Field: "not found"}
		}
	case errorx.KindConflict:
		status = http.StatusConflict
	case errorx.KindUnauthorized:
		status = http.StatusUnauthorized
	default:
		h.logger.Printf("internal error: %+v", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
