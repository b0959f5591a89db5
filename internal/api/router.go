package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opencabin/caraudio-go/internal/auth"
)

// NewRouter creates and returns the main HTTP router.
func NewRouter(ctrl Controller, authSvc *auth.Service, bus EventBus) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{ctrl: ctrl, events: bus}

	// Auth routes (no auth required)
	r.Group(func(r chi.Router) {
		r.Get("/auth/login", h.loginPage)
		r.Post("/auth/login", h.loginPost)
	})

	// API routes (auth required)
	r.Group(func(r chi.Router) {
		r.Use(authSvc.Middleware)

		// System state
		r.Get("/api", h.getState)
		r.Get("/api/", h.getState)

		// Zones and their configurations
		r.Get("/api/zones", h.getZones)
		r.Get("/api/zones/{zid}", h.getZone)
		r.Get("/api/zones/{zid}/configs", h.getConfigs)
		r.Put("/api/zones/{zid}/config", h.selectConfig)
		r.Post("/api/zones/{zid}/configs/{name}/activate", h.activateConfig)
		r.Get("/api/occupants", h.getOccupants)
		r.Get("/api/contexts", h.getContexts)
		r.Get("/api/devices", h.getDevices)

		// Volume groups
		r.Get("/api/zones/{zid}/groups", h.getGroups)
		r.Get("/api/zones/{zid}/groups/{gid}", h.getGroup)
		r.Patch("/api/zones/{zid}/groups/{gid}", h.setGroup)
		r.Post("/api/zones/{zid}/groups/{gid}/sync", h.syncGroup)

		// Focus and ducking
		r.Put("/api/zones/{zid}/focus", h.setFocus)
		r.Get("/api/zones/{zid}/focus", h.getFocus)
		r.Get("/api/zones/{zid}/ducking", h.getDucking)

		// Dynamic devices
		r.Put("/api/devices/availability", h.setDeviceAvailability)

		// System
		r.Get("/api/info", h.getInfo)
		r.Post("/api/reload", h.reload)
		r.Get("/api/temps", h.getTemps)
		r.Post("/api/backup", h.createBackup)
		r.Get("/api/backups", h.listBackups)
		r.Post("/api/restore", h.restoreBackup)

		// SSE
		r.Get("/api/subscribe", h.sseEvents)
	})

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, api-key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
