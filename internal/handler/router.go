package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/clubrank-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса рейтинга.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		// Поток событий не сжимается: ответ отдаётся бесконечно по частям.
		r.Get("/events", h.Events)

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.GzipMiddleware)

			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)
			r.Post("/auth/logout", h.Logout)

			r.Get("/leaderboard", h.GetLeaderboard)
			r.Get("/members", h.ListMembers)
			r.Get("/members/{id}", h.GetMember)
			r.Post("/points", h.AddPoints)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Get("/auth/me", h.Me)
				r.Post("/members/{id}/contributions", h.AddContribution)
				r.Put("/members/{id}", h.UpdateMember)
				r.Delete("/members/{id}", h.DeleteMember)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusNotFound, "not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
