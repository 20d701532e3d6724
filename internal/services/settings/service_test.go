package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
)

// memStorage is an in-memory SettingsStorage for tests.
type memStorage struct {
	settings *models.Settings
}

func (m *memStorage) Load(ctx context.Context) (models.Settings, error) {
	if m.settings == nil {
		return models.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *memStorage) Save(ctx context.Context, settings models.Settings) error {
	m.settings = &settings
	return nil
}

func TestPatchMergesNestedObjects(t *testing.T) {
	svc := NewService(&memStorage{}, arbor.NewLogger())
	ctx := context.Background()

	updated, err := svc.Patch(ctx, map[string]interface{}{
		"azureDevOps": map[string]interface{}{"org": "contoso"},
		"useTestData": true,
	})
	require.NoError(t, err)

	assert.Equal(t, "contoso", updated.AzureDevOps.Org)
	// sibling fields of the patched object survive
	assert.Equal(t, "7.0", updated.AzureDevOps.APIVersion)
	assert.True(t, updated.UseTestData)
	// untouched top-level fields survive
	assert.True(t, updated.PushToDevOps)
}

func TestPatchReplacesArrays(t *testing.T) {
	store := &memStorage{}
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	_, err := svc.Patch(ctx, map[string]interface{}{
		"repositories": map[string]interface{}{"github": []interface{}{"sdk-js", "sdk-python"}},
	})
	require.NoError(t, err)

	updated, err := svc.Patch(ctx, map[string]interface{}{
		"repositories": map[string]interface{}{"github": []interface{}{"sdk-go"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"sdk-go"}, updated.Repositories.GitHub)
}

func TestPatchRejectsWrongShape(t *testing.T) {
	svc := NewService(&memStorage{}, arbor.NewLogger())

	_, err := svc.Patch(context.Background(), map[string]interface{}{
		"pushToDevOps": "definitely not a bool",
	})
	assert.Error(t, err)
}

func TestRotateTimestamps(t *testing.T) {
	store := &memStorage{}
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	firstRun := time.Date(2025, 11, 13, 10, 0, 0, 0, time.UTC)
	previous, err := svc.RotateTimestamps(ctx, firstRun)
	require.NoError(t, err)
	// no earlier run recorded
	assert.True(t, previous.IsZero())

	secondRun := firstRun.Add(24 * time.Hour)
	previous, err = svc.RotateTimestamps(ctx, secondRun)
	require.NoError(t, err)
	assert.True(t, previous.Equal(firstRun))

	settings, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, secondRun.Format(time.RFC3339), settings.Timestamp.LastRun)
	assert.Equal(t, firstRun.Format(time.RFC3339), settings.Timestamp.PreviousRun)
}
