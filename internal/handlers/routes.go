package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Timeout(60 * time.Second))

	// WebSocket (public, one race per connection)
	if h.Hub != nil {
		r.Get("/ws/races/{raceID}", h.handleRaceWS)
	}

	// Auth
	r.Post("/api/login", h.handleLogin)
	r.Post("/api/logout", h.handleLogout)
	r.Get("/api/session", h.handleSession)

	// Public read API: results screens and leaderboards need no login
	r.Get("/api/races", h.handleListRaces)
	r.Get("/api/races/{raceID}/state", h.handleGetState)
	r.Get("/api/races/{raceID}/results", h.handleGetResults)
	r.Get("/api/races/{raceID}/laps-remaining", h.handleGetLapsRemaining)
	r.Get("/api/slug/{slug}", h.handleGetRaceBySlug)
	r.Get("/api/slug/{slug}/state", h.handleGetStateBySlug)

	// Admin API (protected)
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.RequireAuthAPI)

		// Races
		r.Post("/api/admin/races", h.handleCreateRace)
		r.Get("/api/admin/races/{raceID}", h.handleGetRace)
		r.Patch("/api/admin/races/{raceID}", h.handleUpdateRace)
		r.Delete("/api/admin/races/{raceID}", h.handleDeleteRace)
		r.Post("/api/admin/races/{raceID}/start", h.handleStartRace)
		r.Post("/api/admin/races/{raceID}/stop", h.handleStopRace)
		r.Get("/api/admin/races/{raceID}/share-qr", h.handleShareQR)

		// Categories
		r.Post("/api/admin/races/{raceID}/categories", h.handleCreateCategory)
		r.Patch("/api/admin/races/{raceID}/categories/{categoryID}", h.handleUpdateCategory)
		r.Delete("/api/admin/races/{raceID}/categories/{categoryID}", h.handleDeleteCategory)

		// Participants
		r.Get("/api/admin/races/{raceID}/participants", h.handleListParticipants)
		r.Post("/api/admin/races/{raceID}/participants", h.handleCreateParticipant)
		r.Patch("/api/admin/races/{raceID}/participants/{participantID}", h.handleUpdateParticipant)
		r.Post("/api/admin/races/{raceID}/participants/delete", h.handleDeleteParticipants)
		r.Post("/api/admin/races/{raceID}/participants/{participantID}/issue", h.handleSetIssued)
		r.Post("/api/admin/races/{raceID}/participants/import", h.handleImportParticipants)

		// Taps
		r.Post("/api/admin/races/{raceID}/taps", h.handleRecordTap)
		r.Delete("/api/admin/races/{raceID}/taps/{eventID}", h.handleCancelTap)
	})

	return r
}
