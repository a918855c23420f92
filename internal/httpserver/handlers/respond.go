package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/deps"
	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
	"github.com/bookmarkeddit/bookmarkeddit/internal/reddit"
)

// errorResponse is the uniform error shape the client consumes. RetryAfter
// is only present on 429s.
type errorResponse struct {
	Error      string `json:"error"`
	Status     int    `json:"status"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw forwards an upstream JSON body untouched.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Status: status})
}

func writeRateLimited(w http.ResponseWriter, msg string, retryAfter int) {
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:      msg,
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	})
}

// writeRedditError translates the upstream client's typed errors into the
// uniform wire shape. The sessionContext flag rewrites 401s and 400s into
// the user-facing messages the browser shows verbatim.
func writeRedditError(w http.ResponseWriter, d deps.Deps, err error, sessionContext bool) {
	var rle *reddit.RateLimitError
	if errors.As(err, &rle) {
		msg := "Too many requests to Reddit API"
		if rle.Cooldown {
			msg = "Rate limit in effect, please try again later"
		}
		writeRateLimited(w, msg, rle.RetryAfter)
		return
	}

	var ue *reddit.UpstreamError
	if errors.As(err, &ue) {
		if sessionContext {
			switch ue.Status {
			case http.StatusUnauthorized:
				writeError(w, http.StatusUnauthorized, "Your session has expired. Please log in again.")
				return
			case http.StatusBadRequest:
				writeError(w, http.StatusBadRequest,
					"Bad request to Reddit API. Your session might be invalid or you may have insufficient permissions.")
				return
			}
		}
		writeError(w, ue.Status, ue.Body)
		return
	}

	d.Logger.Error("reddit call failed", logger.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}
