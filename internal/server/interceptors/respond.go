package interceptors

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"market-auth/backend/internal/platform/apperror"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Code    apperror.Kind `json:"code"`
	Message string        `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write json failed", "error", err)
	}
}

// WriteError maps err to its HTTP status and writes the public message. Internal causes are logged,
// never sent to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	WriteJSON(w, status, ErrorBody{Code: apperror.KindOf(err), Message: apperror.PublicMessage(err)})
}
