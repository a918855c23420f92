package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/deps"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/handlers"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/mw"
)

func init() { Register(registerReddit) }

// Everything under here needs a bearer token.
func registerReddit(r chi.Router, d deps.Deps) {
	sub := r.With(mw.Bearer())
	sub.Get("/me", handlers.Me(d))
	sub.Get("/saved", handlers.Saved(d))
	sub.Get("/saved-all", handlers.SavedAll(d))
	sub.Post("/unsave", handlers.Unsave(d))
	sub.Post("/ratelimit/clear", handlers.ClearRateLimit(d))
}
