package mw

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type ctxKey int

const tokenKey ctxKey = iota

// Bearer extracts the bearer token from the Authorization header and stores
// it in the request context. Requests without one are rejected with the
// uniform error shape before any handler runs.
func Bearer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":  "Missing or malformed Authorization header",
					"status": http.StatusUnauthorized,
				})
				return
			}

			ctx := context.WithValue(r.Context(), tokenKey, strings.TrimSpace(token))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Token returns the bearer token placed in ctx by Bearer.
func Token(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}
