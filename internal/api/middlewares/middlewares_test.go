package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkmate/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func signed(t *testing.T, key string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":  7,
		"user": "alice",
		"exp":  exp.Unix(),
	})
	s, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	id, _ := r.Context().Value(utils.ContextKey("userId")).(float64)
	utils.WriteJSON(w, http.StatusOK, map[string]float64{"uid": id})
}

func TestJWTMiddleware(t *testing.T) {
	h := JWTMiddleware(secret)(http.HandlerFunc(echoUser))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "Bearer", Value: signed(t, secret, time.Now().Add(time.Hour))})
		}, http.StatusOK},
		{"header", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, secret, time.Now().Add(time.Hour)))
		}, http.StatusOK},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"expired", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, secret, time.Now().Add(-time.Hour)))
		}, http.StatusUnauthorized},
		{"wrong key", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, "other", time.Now().Add(time.Hour)))
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/settlement/1/status", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"uid":7}`, rec.Body.String())
			}
		})
	}
}

func TestMiddlewaresExcludePaths(t *testing.T) {
	h := MiddlewaresExcludePaths(JWTMiddleware(secret), "/healthz")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trips/1/expenses", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(utils.ContextKey("requestId")).(string)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", id)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", seen)
}

func TestSecurityHeadersAndCors(t *testing.T) {
	h := Cors([]string{"https://app.example"})(SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
