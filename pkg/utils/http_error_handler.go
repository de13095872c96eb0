package utils

import "net/http"

type errorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError renders the error envelope. The request id set by the
// RequestID middleware is echoed back when present.
func WriteError(w http.ResponseWriter, message string, statusCode int) {
	WriteJSON(w, statusCode, errorResponse{
		Status:    "error",
		Message:   message,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
