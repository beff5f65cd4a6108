// File: internal/infra/web/respond.go
package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"membership-payments/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeDomainError maps domain error kinds and sentinels to HTTP statuses.
// Internal detail stays out of client responses.
func writeDomainError(w http.ResponseWriter, err error) {
	var pe *domain.PaymentError
	msg := "request failed"
	if errors.As(err, &pe) && pe.Msg != "" {
		msg = pe.Msg
	}

	switch {
	case domain.IsKind(err, domain.KindValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
	case domain.IsKind(err, domain.KindNotFound), errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case domain.IsKind(err, domain.KindConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: msg})
	case domain.IsKind(err, domain.KindGateway):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: msg})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request"})
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
