package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	assert.NoError(t, ErrorHandler(nil, "ignored"))

	cause := errors.New("connection refused")
	err := ErrorHandler(cause, "failed to load trip")
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "failed to load trip: connection refused")

	assert.ErrorIs(t, ErrorHandler(context.Canceled, "query aborted"), context.Canceled)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-ID", "req-1")
	WriteError(rec, "trip not found", http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"status": "error", "message": "trip not found", "request_id": "req-1"}, body)
}

func TestWriteErrorWithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, "bad input", http.StatusBadRequest)
	assert.JSONEq(t, `{"status":"error","message":"bad input"}`, rec.Body.String())
}

func TestSettlementEmailsRenderLegs(t *testing.T) {
	out := renderLegs([]string{"Bob pays Alice $15.00", "<b>Eve</b> pays Alice $1.00"})
	assert.Contains(t, out, "<p>Bob pays Alice $15.00</p>")
	assert.Contains(t, out, "&lt;b&gt;Eve&lt;/b&gt;")

	assert.Contains(t, renderLegs(nil), "Everyone is already even")
}
