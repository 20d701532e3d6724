package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/secrets"
)

// SecretsServiceInterface defines the methods needed from the secrets service
type SecretsServiceInterface interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Check(ctx context.Context, keys []string) (map[string]bool, error)
}

// SecretsHandler handles credential HTTP requests
type SecretsHandler struct {
	secrets SecretsServiceInterface
	logger  arbor.ILogger
}

// NewSecretsHandler creates a new secrets handler
func NewSecretsHandler(service SecretsServiceInterface, logger arbor.ILogger) *SecretsHandler {
	return &SecretsHandler{
		secrets: service,
		logger:  logger,
	}
}

// CheckHandler handles POST /api/secrets/check with {keys:[...]}.
func (h *SecretsHandler) CheckHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Keys []string `json:"keys"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.secrets.Check(r.Context(), req.Keys)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to check secrets")
		WriteError(w, http.StatusInternalServerError, "Failed to check secrets")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// SecretRoutes handles GET, PUT and DELETE on /api/secrets/{key}.
func (h *SecretsHandler) SecretRoutes(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/secrets/")
	if key == "" || strings.Contains(key, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getSecret(w, r, key)
	case http.MethodPut:
		h.putSecret(w, r, key)
	case http.MethodDelete:
		h.deleteSecret(w, r, key)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// getSecret reports presence; the value itself is masked unless the
// caller asks for it with reveal=true.
func (h *SecretsHandler) getSecret(w http.ResponseWriter, r *http.Request, key string) {
	value, err := h.secrets.Get(r.Context(), key)
	if errors.Is(err, secrets.ErrUnknownKey) {
		WriteError(w, http.StatusBadRequest, "Unknown secret key")
		return
	}
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"hasValue": false})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to get secret")
		WriteError(w, http.StatusInternalServerError, "Failed to get secret")
		return
	}

	if r.URL.Query().Get("reveal") == "true" {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"hasValue": true, "value": value})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"hasValue": true, "value": secrets.Mask(value)})
}

func (h *SecretsHandler) putSecret(w http.ResponseWriter, r *http.Request, key string) {
	var req struct {
		Value string `json:"value"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	err := h.secrets.Set(r.Context(), key, req.Value)
	if errors.Is(err, secrets.ErrUnknownKey) {
		WriteError(w, http.StatusBadRequest, "Unknown secret key")
		return
	}
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteSuccess(w)
}

func (h *SecretsHandler) deleteSecret(w http.ResponseWriter, r *http.Request, key string) {
	err := h.secrets.Delete(r.Context(), key)
	if errors.Is(err, secrets.ErrUnknownKey) {
		WriteError(w, http.StatusBadRequest, "Unknown secret key")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to delete secret")
		WriteError(w, http.StatusInternalServerError, "Failed to delete secret")
		return
	}

	WriteSuccess(w)
}
