package middlewares

import (
	"context"
	"net/http"
	"slices"
	"time"

	"checkmate/pkg/utils"

	"github.com/google/uuid"
	"github.com/rs/cors"
)

// MiddlewaresExcludePaths applies middleware to every path except the listed ones.
func MiddlewaresExcludePaths(middleware func(http.Handler) http.Handler, excluded ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := middleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(excluded, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// RequestID tags each request with an id, echoed in X-Request-ID and
// attached to the request logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		ctx := context.WithValue(r.Context(), utils.ContextKey("requestId"), id)
		next.ServeHTTP(w, r.WithContext(ctx))

		utils.RequestLogger(ctx).WithField("duration", time.Since(start).String()).
			Debugf("%s %s", r.Method, r.URL.Path)
	})
}

// Cors lets the web client call the API with credentials from the given origins.
func Cors(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	})
	return c.Handler
}
