package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Queries (reconciliation jobs)
	mux.HandleFunc("/api/queries", s.app.QueryHandler.QueriesHandler) // GET (list), POST (start)
	mux.HandleFunc("/api/queries/", s.app.QueryHandler.QueryRoutes)   // GET /{id}, POST /{id}/cancel

	// API routes - Run snapshot
	mux.HandleFunc("/api/snapshot", s.app.QueryHandler.SnapshotHandler)

	// API routes - Settings
	mux.HandleFunc("/api/settings", s.app.SettingsHandler.SettingsRoutes) // GET, PATCH

	// API routes - Secrets
	mux.HandleFunc("/api/secrets/check", s.app.SecretsHandler.CheckHandler)
	mux.HandleFunc("/api/secrets/", s.app.SecretsHandler.SecretRoutes) // GET/PUT/DELETE /{key}

	// API routes - Credential validation
	mux.HandleFunc("/api/validate/", s.app.ValidateHandler.ValidateRoutes)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
