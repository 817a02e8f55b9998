package rfi

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireActor)
		r.Post("/rfis", h.Submit)
		r.Get("/rfis/{id}", h.Show)
		r.Post("/rfis/{id}/messages", h.AppendMessage)
		r.Post("/rfis/{id}/messages/{key}/official", h.MarkOfficial)
		r.Delete("/rfis/{id}/messages/{key}/official", h.UnmarkOfficial)
		r.Post("/rfis/{id}/transitions", h.Transition)
	})
}
