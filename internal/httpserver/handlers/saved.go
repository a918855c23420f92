package handlers

import (
	"net/http"
	"strconv"

	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/deps"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/mw"
	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
)

func pageLimit(r *http.Request, d deps.Deps) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			return n
		}
	}
	return d.PageLimit
}

// Saved returns one page of the user's saved listing, Reddit envelope
// untouched.
func Saved(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mw.Token(r.Context())
		limit := pageLimit(r, d)
		after := r.URL.Query().Get("after")

		username, err := d.Reddit.ResolveUsername(r.Context(), token)
		if err != nil {
			writeRedditError(w, d, err, true)
			return
		}

		page, err := d.Reddit.SavedPage(r.Context(), token, username, limit, after)
		if err != nil {
			writeRedditError(w, d, err, true)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

// SavedAll follows the saved-listing cursor to exhaustion and returns one
// unified envelope. A mid-pagination rate limit aborts the whole fetch;
// nothing partial is ever returned and there is no resumable cursor.
func SavedAll(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mw.Token(r.Context())
		limit := pageLimit(r, d)

		all, err := d.Reddit.SavedAll(r.Context(), token, limit)
		if err != nil {
			writeRedditError(w, d, err, true)
			return
		}

		d.Logger.Info("saved-all complete",
			logger.Int("count", all.Data.Dist))
		writeJSON(w, http.StatusOK, all)
	}
}
