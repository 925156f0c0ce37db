package api

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers every API route on r.
func SetupRoutes(r chi.Router, h *Handler) {
	r.Get("/api/healthz", Health)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", h.SignUp)
		r.Post("/signin", h.SignIn)
		r.Post("/anonymous", h.SignInAnonymously)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Post("/signout", h.SignOut)
			r.Get("/me", h.Me)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/api/events", h.StreamEvents)

		// --- Volunteer routes ---
		r.Route("/api/volunteer", func(r chi.Router) {
			r.Use(VolunteerMiddleware)

			r.Post("/heartbeat", h.Heartbeat)
			r.Get("/neighborhoods", h.ListActiveNeighborhoods)
			r.Post("/claim", h.Claim)
			r.Get("/deliveries", h.MyDeliveries)
			r.Post("/deliveries/{id}/status", h.ChangeMyStatus)
			r.Post("/deliveries/{id}/release", h.Release)
			r.Post("/deliveries/{id}/complete", h.Complete)
			r.Post("/deliveries/{id}/edit-requests", h.SubmitEditRequest)
			r.Get("/deliveries/{id}/navigation", h.Navigation)
			r.Get("/deliveries/{id}/qr.png", h.NavigationQR)
			r.Get("/stats", h.GetMyStats)
			r.Put("/goals", h.SetMyGoals)
		})

		// --- Admin routes ---
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(AdminMiddleware)

			r.Get("/deliveries", h.ListDeliveries)
			r.Post("/deliveries", h.CreateDelivery)
			r.Post("/deliveries/bulk-delete", h.BulkDeleteDeliveries)
			r.Get("/deliveries/export", h.ExportDeliveries)
			r.Post("/deliveries/import", h.ImportDeliveries)
			r.Get("/deliveries/{id}", h.GetDelivery)
			r.Patch("/deliveries/{id}", h.UpdateDeliveryField)
			r.Delete("/deliveries/{id}", h.DeleteDelivery)
			r.Post("/deliveries/{id}/status", h.SetDeliveryStatus)
			r.Post("/deliveries/{id}/assign", h.AssignDelivery)
			r.Post("/deliveries/{id}/unassign", h.UnassignDelivery)
			r.Post("/deliveries/{id}/geocode", h.GeocodeDelivery)
			r.Post("/pending-index/rebuild", h.RebuildPendingIndex)

			r.Get("/neighborhoods", h.ListAllNeighborhoods)
			r.Post("/neighborhoods", h.AddNeighborhood)
			r.Post("/neighborhoods/{id}/active", h.SetNeighborhoodActive)

			r.Get("/volunteers", h.ListVolunteers)

			r.Get("/edit-requests", h.ListEditRequests)
			r.Post("/edit-requests/{id}/approve", h.ApproveEditRequest)
			r.Post("/edit-requests/{id}/reject", h.RejectEditRequest)

			r.Get("/stats", h.GetStats)
		})
	})
}
