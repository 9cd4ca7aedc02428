package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/wunjo/internal/wellness"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *wellness.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Categories CRUD and ordering.
	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.CreateCategory)
	r.Put("/categories/{id}", h.UpdateCategory)
	r.Delete("/categories/{id}", h.DeleteCategory)
	r.Post("/categories/reorder", h.ReorderCategories)

	// Goals.
	r.Get("/goals", h.ListGoals)
	r.Put("/goals", h.SetGoal)
	r.Post("/goals/batch", h.BatchGoals)

	// Entries CRUD.
	r.Get("/entries", h.ListEntries)
	r.Post("/entries", h.CreateEntry)
	r.Put("/entries/{id}", h.UpdateEntry)
	r.Delete("/entries/{id}", h.DeleteEntry)

	// Sync status and aggregates.
	r.Get("/pending/{id}", h.GetPending)
	r.Get("/summary", h.GetSummary)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
