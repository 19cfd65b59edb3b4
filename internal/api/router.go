package api

import (
	"net/http"
	"time"

	"github.com/capable-sharma/CampusyncCapable/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", apiHandler.RegisterHandler)
		r.Post("/auth/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"status":    "OK",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"service":   "CampusSync Backend",
			})
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/auth/me", apiHandler.MeHandler)

			// Event routes
			r.Get("/events", apiHandler.ListEventsHandler)
			r.Get("/events/filter", apiHandler.FilterEventsHandler)
			r.Get("/events/upcoming", apiHandler.UpcomingEventsHandler)
			r.With(RequireRole(store.RoleClubLead)).Get("/events/my", apiHandler.MyEventsHandler)
			r.With(RequireRole(store.RoleAdmin)).Get("/events/pending", apiHandler.PendingEventsHandler)
			r.With(RequireRole(store.RoleStudent)).Get("/events/registered", apiHandler.RegisteredEventsHandler)
			r.Get("/events/{eventID}", apiHandler.GetEventHandler)
			r.With(RequireRole(store.RoleClubLead, store.RoleAdmin)).Post("/events", apiHandler.CreateEventHandler)
			r.With(RequireRole(store.RoleClubLead, store.RoleAdmin)).Put("/events/{eventID}", apiHandler.UpdateEventHandler)
			r.With(RequireRole(store.RoleClubLead, store.RoleAdmin)).Delete("/events/{eventID}", apiHandler.DeleteEventHandler)
			r.With(RequireRole(store.RoleAdmin)).Post("/events/{eventID}/approve", apiHandler.ApproveEventHandler)
			r.With(RequireRole(store.RoleStudent)).Post("/events/{eventID}/enroll", apiHandler.EnrollHandler)
			r.With(RequireRole(store.RoleStudent)).Get("/events/{eventID}/enrollment-status", apiHandler.EnrollmentStatusHandler)

			// Stats routes
			r.With(RequireRole(store.RoleAdmin)).Get("/stats/admin", apiHandler.AdminStatsHandler)
			r.With(RequireRole(store.RoleClubLead)).Get("/stats/club-lead", apiHandler.ClubLeadStatsHandler)

			// AI routes
			r.Post("/ai/chat", apiHandler.AIChatHandler)
			r.With(RequireRole(store.RoleStudent)).Get("/ai/recommendations", apiHandler.RecommendationsHandler)
			r.With(RequireRole(store.RoleClubLead, store.RoleAdmin)).Post("/ai/event-summary", apiHandler.EventSummaryHandler)
			r.Get("/ai/chat-history", apiHandler.ChatHistoryHandler)
		})
	})

	return r
}
