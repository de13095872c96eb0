package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"checkmate/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
)

// JWTMiddleware accepts the session token from the "Bearer" cookie or the
// Authorization header and exposes its claims on the request context.
func JWTMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				utils.WriteError(w, "Unauthorized: Missing Bearer token", http.StatusUnauthorized)
				return
			}

			parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					utils.WriteError(w, "token expired", http.StatusUnauthorized)
					return
				}
				utils.RequestLogger(r.Context()).WithError(err).Debug("rejected JWT")
				utils.WriteError(w, "invalid login token", http.StatusUnauthorized)
				return
			}

			claims, ok := parsedToken.Claims.(jwt.MapClaims)
			if !ok || !parsedToken.Valid {
				utils.WriteError(w, "invalid login token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), utils.ContextKey("role"), claims["role"])
			ctx = context.WithValue(ctx, utils.ContextKey("expiresAt"), claims["exp"])
			ctx = context.WithValue(ctx, utils.ContextKey("username"), claims["user"])
			ctx = context.WithValue(ctx, utils.ContextKey("userId"), claims["uid"])

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if cookie, err := r.Cookie("Bearer"); err == nil && cookie.Value != "" {
		return strings.TrimPrefix(cookie.Value, "Bearer ")
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
