package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/deps"
	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
	"github.com/bookmarkeddit/bookmarkeddit/internal/reddit"
)

type tokenRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ExchangeToken converts the OAuth code received from Reddit into access
// and refresh tokens.
func ExchangeToken(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" || req.RedirectURI == "" {
			d.Logger.Error("missing parameters in token exchange request",
				logger.Bool("missing_code", req.Code == ""),
				logger.Bool("missing_redirect_uri", req.RedirectURI == ""))
			writeError(w, http.StatusBadRequest,
				"Missing required parameters. Both code and redirectUri are required.")
			return
		}

		d.Logger.Info("attempting token exchange with reddit",
			logger.String("redirect_uri", req.RedirectURI))

		tok, err := d.Reddit.ExchangeCode(r.Context(), req.Code, req.RedirectURI)
		if err != nil {
			var ue *reddit.UpstreamError
			if errors.As(err, &ue) {
				d.Logger.Error("token exchange failed with reddit",
					logger.Int("status", ue.Status))
				writeError(w, ue.Status, "Failed to exchange token: "+ue.Body)
				return
			}
			d.Logger.Error("error during token exchange", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "Error during token exchange: "+err.Error())
			return
		}

		d.Logger.Info("token exchange successful",
			logger.String("token_type", tok.TokenType),
			logger.Int("expires_in", tok.ExpiresIn),
			logger.String("scope", tok.Scope))
		writeJSON(w, http.StatusOK, tok)
	}
}

// RefreshToken refreshes an expired access token using the refresh token.
// The refresh token is echoed back in the response because Reddit omits it.
func RefreshToken(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			d.Logger.Error("missing refresh token in request")
			writeError(w, http.StatusBadRequest, "Missing refresh token")
			return
		}

		d.Logger.Info("attempting to refresh reddit api token")

		tok, err := d.Reddit.RefreshToken(r.Context(), req.RefreshToken)
		if err != nil {
			var ue *reddit.UpstreamError
			if errors.As(err, &ue) {
				d.Logger.Error("token refresh failed with reddit",
					logger.Int("status", ue.Status))
				writeError(w, ue.Status, "Failed to refresh token: "+ue.Body)
				return
			}
			d.Logger.Error("error during token refresh", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "Error during token refresh: "+err.Error())
			return
		}

		d.Logger.Info("token refresh successful",
			logger.String("token_type", tok.TokenType),
			logger.Int("expires_in", tok.ExpiresIn))
		writeJSON(w, http.StatusOK, tok)
	}
}
