package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/deps"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/handlers"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.Post("/auth/token", handlers.ExchangeToken(d))
	r.Post("/auth/refresh", handlers.RefreshToken(d))
}
