package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/secrets"
)

type fakeSecrets struct {
	values map[string]string
}

func newFakeSecrets() *fakeSecrets {
	return &fakeSecrets{values: make(map[string]string)}
}

func (f *fakeSecrets) known(key string) bool { return models.IsSecretKey(key) }

func (f *fakeSecrets) Get(ctx context.Context, key string) (string, error) {
	if !f.known(key) {
		return "", secrets.ErrUnknownKey
	}
	v, ok := f.values[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeSecrets) Set(ctx context.Context, key, value string) error {
	if !f.known(key) {
		return secrets.ErrUnknownKey
	}
	f.values[key] = value
	return nil
}

func (f *fakeSecrets) Delete(ctx context.Context, key string) error {
	if !f.known(key) {
		return secrets.ErrUnknownKey
	}
	delete(f.values, key)
	return nil
}

func (f *fakeSecrets) Has(ctx context.Context, key string) (bool, error) {
	_, ok := f.values[key]
	return ok, nil
}

func (f *fakeSecrets) Check(ctx context.Context, keys []string) (map[string]bool, error) {
	result := make(map[string]bool, len(keys))
	for _, k := range keys {
		_, ok := f.values[k]
		result[k] = ok
	}
	return result, nil
}

func TestSecretGetMasksByDefault(t *testing.T) {
	store := newFakeSecrets()
	store.values[models.SecretGitHubToken] = "ghp_secret_token"
	h := NewSecretsHandler(store, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/secrets/github-token", nil)
	rec := httptest.NewRecorder()
	h.SecretRoutes(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["hasValue"])
	assert.NotEqual(t, "ghp_secret_token", resp["value"])
	assert.True(t, strings.HasSuffix(resp["value"].(string), "oken"))
}

func TestSecretGetReveal(t *testing.T) {
	store := newFakeSecrets()
	store.values[models.SecretGitHubToken] = "ghp_secret_token"
	h := NewSecretsHandler(store, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/secrets/github-token?reveal=true", nil)
	rec := httptest.NewRecorder()
	h.SecretRoutes(rec, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ghp_secret_token", resp["value"])
}

func TestSecretGetAbsent(t *testing.T) {
	h := NewSecretsHandler(newFakeSecrets(), arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/secrets/devops-pat", nil)
	rec := httptest.NewRecorder()
	h.SecretRoutes(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["hasValue"])
	_, hasValue := resp["value"]
	assert.False(t, hasValue)
}

func TestSecretPutAndDelete(t *testing.T) {
	store := newFakeSecrets()
	h := NewSecretsHandler(store, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/secrets/devops-pat", strings.NewReader(`{"value":"pat"}`))
	rec := httptest.NewRecorder()
	h.SecretRoutes(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pat", store.values[models.SecretDevOpsPAT])

	req = httptest.NewRequest(http.MethodDelete, "/api/secrets/devops-pat", nil)
	rec = httptest.NewRecorder()
	h.SecretRoutes(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := store.values[models.SecretDevOpsPAT]
	assert.False(t, ok)
}

func TestSecretUnknownKeyRejected(t *testing.T) {
	h := NewSecretsHandler(newFakeSecrets(), arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/secrets/not-a-key", strings.NewReader(`{"value":"x"}`))
	rec := httptest.NewRecorder()
	h.SecretRoutes(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSecretsCheck(t *testing.T) {
	store := newFakeSecrets()
	store.values[models.SecretGitHubToken] = "t"
	h := NewSecretsHandler(store, arbor.NewLogger())

	body := strings.NewReader(`{"keys":["github-token","devops-pat"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/secrets/check", body)
	rec := httptest.NewRecorder()
	h.CheckHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["github-token"])
	assert.False(t, resp["devops-pat"])
}
