package handlers

import (
	"net/http"

	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/deps"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/mw"
)

// Me forwards the authenticated user's profile from Reddit's identity
// endpoint, body untouched.
func Me(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mw.Token(r.Context())

		body, err := d.Reddit.Me(r.Context(), token)
		if err != nil {
			writeRedditError(w, d, err, false)
			return
		}
		writeRaw(w, http.StatusOK, body)
	}
}
