package quotations

import "github.com/go-chi/chi/v5"

// MountRoutes registers the billing endpoints. Permission checks happen in the
// service since they depend on the acting party.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireActor)
		r.Get("/projects/{id}", h.ProjectBilling)
		r.Post("/projects/{id}/billing", h.StartBilling)

		r.Get("/quotations/{id}", h.Show)
		r.Put("/quotations/{id}", h.Update)
		r.Get("/quotations/{id}/pdf", h.PDF)
		r.Post("/quotations/{id}/send", h.Send)
		r.Post("/quotations/{id}/accept", h.Accept)
		r.Post("/quotations/{id}/reject", h.Reject)
		r.Post("/quotations/{id}/invoice", h.Invoice)
		r.Post("/quotations/{id}/pay", h.Pay)
		r.Post("/quotations/{id}/revisions", h.Revise)
	})
}
