package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/deps"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/mw"
	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
)

type unsaveRequest struct {
	ID string `json:"id"` // kind-prefixed fullname, ex: t3_abc123
}

type unsaveResponse struct {
	Success bool `json:"success"`
}

// Unsave removes an item from the user's saved list.
func Unsave(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mw.Token(r.Context())

		var req unsaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
			writeError(w, http.StatusBadRequest, "Post ID is required")
			return
		}

		if err := d.Reddit.Unsave(r.Context(), token, req.ID); err != nil {
			writeRedditError(w, d, err, false)
			return
		}

		d.Logger.Info("item unsaved", logger.String("fullname", req.ID))
		writeJSON(w, http.StatusOK, unsaveResponse{Success: true})
	}
}
