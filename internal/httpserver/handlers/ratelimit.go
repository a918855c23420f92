package handlers

import (
	"net/http"

	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/deps"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/mw"
)

type clearRateLimitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ClearRateLimit drops the cooldown for the calling token. Debug aid for
// development setups; harmless in production since the next upstream 429
// just re-establishes the entry.
func ClearRateLimit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mw.Token(r.Context())

		if !d.Limiter.Clear(token) {
			writeError(w, http.StatusBadRequest, "Invalid token or no rate limit set")
			return
		}
		writeJSON(w, http.StatusOK, clearRateLimitResponse{
			Success: true,
			Message: "Rate limit cleared",
		})
	}
}
