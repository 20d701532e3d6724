package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// memStorage is an in-memory SecretStorage for tests.
type memStorage struct {
	values map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{values: make(map[string]string)}
}

func (m *memStorage) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStorage) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func (m *memStorage) Has(ctx context.Context, key string) (bool, error) {
	v, ok := m.values[key]
	return ok && v != "", nil
}

func TestClosedKeySet(t *testing.T) {
	svc := NewService(newMemStorage(), arbor.NewLogger())
	ctx := context.Background()

	assert.ErrorIs(t, svc.Set(ctx, "random-key", "v"), ErrUnknownKey)
	_, err := svc.Get(ctx, "random-key")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.ErrorIs(t, svc.Delete(ctx, "random-key"), ErrUnknownKey)
}

func TestSetGetDelete(t *testing.T) {
	svc := NewService(newMemStorage(), arbor.NewLogger())
	ctx := context.Background()

	assert.Error(t, svc.Set(ctx, models.SecretDevOpsPAT, "   "))

	require.NoError(t, svc.Set(ctx, models.SecretDevOpsPAT, "pat-value"))

	value, err := svc.Get(ctx, models.SecretDevOpsPAT)
	require.NoError(t, err)
	assert.Equal(t, "pat-value", value)

	require.NoError(t, svc.Delete(ctx, models.SecretDevOpsPAT))
	_, err = svc.Get(ctx, models.SecretDevOpsPAT)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestCheck(t *testing.T) {
	svc := NewService(newMemStorage(), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, models.SecretGitHubToken, "ghp_abc"))

	result, err := svc.Check(ctx, []string{models.SecretGitHubToken, models.SecretDevOpsPAT, "bogus"})
	require.NoError(t, err)

	assert.True(t, result[models.SecretGitHubToken])
	assert.False(t, result[models.SecretDevOpsPAT])
	assert.False(t, result["bogus"])
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "****", Mask("abcd"))
	assert.Equal(t, "*****f_9x", Mask("ghp_af_9x"))
}
