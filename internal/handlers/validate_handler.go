// -----------------------------------------------------------------------
// Validate handler - one-shot credential checks against each upstream
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/upstream"
)

// ValidateHandler handles per-upstream credential validation requests.
// POST validates a supplied payload; GET validates stored credentials.
type ValidateHandler struct {
	config   *common.Config
	settings SettingsServiceInterface
	secrets  SecretsServiceInterface
	logger   arbor.ILogger
}

// NewValidateHandler creates a new validate handler
func NewValidateHandler(config *common.Config, settings SettingsServiceInterface, secrets SecretsServiceInterface, logger arbor.ILogger) *ValidateHandler {
	return &ValidateHandler{
		config:   config,
		settings: settings,
		secrets:  secrets,
		logger:   logger,
	}
}

// ValidateRoutes dispatches /api/validate/{devops|github|internal-so}.
func (h *ValidateHandler) ValidateRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target := strings.TrimPrefix(r.URL.Path, "/api/validate/")
	switch target {
	case "devops":
		h.validateDevOps(w, r)
	case "github":
		h.validateGitHub(w, r)
	case "internal-so":
		h.validateInternalSO(w, r)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (h *ValidateHandler) writeOutcome(w http.ResponseWriter, err error) {
	if err != nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"valid": false, "error": err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"valid": true})
}

// storedSecret returns the stored value, or empty when absent.
func (h *ValidateHandler) storedSecret(ctx context.Context, key string) string {
	value, err := h.secrets.Get(ctx, key)
	if err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
		h.logger.Warn().Err(err).Str("key", key).Msg("Failed to read stored secret")
	}
	return value
}

func (h *ValidateHandler) validateDevOps(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.config.Upstreams.ValidationTimeout)
	defer cancel()

	var payload struct {
		Org      string `json:"org"`
		Project  string `json:"project"`
		Username string `json:"username"`
		PAT      string `json:"pat"`
	}

	if r.Method == http.MethodPost {
		if !DecodeJSON(w, r, &payload) {
			return
		}
	} else {
		settings, err := h.settings.Get(ctx)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}
		payload.Org = settings.AzureDevOps.Org
		payload.Project = settings.AzureDevOps.Project
		payload.Username = h.storedSecret(ctx, models.SecretDevOpsUsername)
		payload.PAT = h.storedSecret(ctx, models.SecretDevOpsPAT)
	}

	client := upstream.NewAzureDevOpsClient(
		h.config.Upstreams.AzureDevOpsBaseURL,
		payload.Org, payload.Project, "",
		payload.Username, payload.PAT,
		upstream.WithAzureDevOpsLogger(h.logger),
	)
	h.writeOutcome(w, client.Validate(ctx))
}

func (h *ValidateHandler) validateGitHub(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.config.Upstreams.ValidationTimeout)
	defer cancel()

	var payload struct {
		Token string `json:"token"`
	}

	if r.Method == http.MethodPost {
		if !DecodeJSON(w, r, &payload) {
			return
		}
	} else {
		payload.Token = h.storedSecret(ctx, models.SecretGitHubToken)
	}

	if payload.Token == "" {
		h.writeOutcome(w, upstream.NewServiceError("GitHub", upstream.KindConfiguration, "token is not set"))
		return
	}

	client := upstream.NewGitHubClient(
		h.config.Upstreams.GitHubGraphQLURL,
		h.config.Upstreams.GitHubOrg,
		payload.Token,
		upstream.WithGitHubLogger(h.logger),
	)
	h.writeOutcome(w, client.Validate(ctx))
}

func (h *ValidateHandler) validateInternalSO(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.config.Upstreams.ValidationTimeout)
	defer cancel()

	var payload struct {
		Key string `json:"key"`
	}

	if r.Method == http.MethodPost {
		if !DecodeJSON(w, r, &payload) {
			return
		}
	} else {
		payload.Key = h.storedSecret(ctx, models.SecretInternalSOKey)
	}

	if h.config.Upstreams.InternalSOAPIURL == "" {
		h.writeOutcome(w, upstream.NewServiceError("Internal Stack Overflow", upstream.KindConfiguration, "internal API URL is not configured"))
		return
	}
	if payload.Key == "" {
		h.writeOutcome(w, upstream.NewServiceError("Internal Stack Overflow", upstream.KindConfiguration, "API key is not set"))
		return
	}

	client := upstream.NewInternalStackOverflowClient(
		h.config.Upstreams.InternalSOAPIURL,
		payload.Key,
		upstream.WithStackExchangeLogger(h.logger),
	)
	h.writeOutcome(w, client.Validate(ctx))
}
