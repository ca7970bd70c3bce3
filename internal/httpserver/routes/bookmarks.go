package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
)

func init() { Register(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	api := r.With(mw.EnforceHost(d.AllowedHosts, d.Logger))
	api.Get("/api/v1/bookmarks", handlers.ListBookmarks(d))
	api.Get("/api/v1/bookmarks/{shortid}", handlers.GetBookmark(d))

	write := api.With(mw.RequireAuth)
	write.Post("/api/v1/bookmarks", handlers.CreateBookmark(d))
	write.Put("/api/v1/bookmarks/{id}", handlers.UpdateBookmark(d))
	write.Delete("/api/v1/bookmarks/{id}", handlers.DeleteBookmark(d))
}
