package handlers

import (
	"context"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
)

// SettingsServiceInterface defines the methods needed from the settings service
type SettingsServiceInterface interface {
	Get(ctx context.Context) (models.Settings, error)
	Patch(ctx context.Context, patch map[string]interface{}) (models.Settings, error)
}

// SettingsHandler handles settings document HTTP requests
type SettingsHandler struct {
	settings SettingsServiceInterface
	logger   arbor.ILogger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings SettingsServiceInterface, logger arbor.ILogger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		logger:   logger,
	}
}

// SettingsRoutes handles GET and PATCH /api/settings.
func (h *SettingsHandler) SettingsRoutes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := h.settings.Get(r.Context())
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to load settings")
			WriteError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}
		WriteJSON(w, http.StatusOK, settings)

	case http.MethodPatch:
		var patch map[string]interface{}
		if !DecodeJSON(w, r, &patch) {
			return
		}

		updated, err := h.settings.Patch(r.Context(), patch)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to patch settings")
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, updated)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
