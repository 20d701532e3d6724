// -----------------------------------------------------------------------
// Settings service - document load, partial update, timestamp rotation
// -----------------------------------------------------------------------

package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Service provides business logic for the settings document
type Service struct {
	storage interfaces.SettingsStorage
	logger  arbor.ILogger
}

// NewService creates a new settings service
func NewService(storage interfaces.SettingsStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// Get returns the current settings document.
func (s *Service) Get(ctx context.Context) (models.Settings, error) {
	return s.storage.Load(ctx)
}

// Patch applies a partial update to the settings document. Nested objects
// merge key by key; arrays and scalars replace wholesale.
func (s *Service) Patch(ctx context.Context, patch map[string]interface{}) (models.Settings, error) {
	current, err := s.storage.Load(ctx)
	if err != nil {
		return models.Settings{}, err
	}

	currentJSON, err := json.Marshal(current)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to marshal settings: %w", err)
	}

	var base map[string]interface{}
	if err := json.Unmarshal(currentJSON, &base); err != nil {
		return models.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}

	merged := mergeMaps(base, patch)

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to marshal merged settings: %w", err)
	}

	var updated models.Settings
	if err := json.Unmarshal(mergedJSON, &updated); err != nil {
		return models.Settings{}, fmt.Errorf("patch does not fit the settings shape: %w", err)
	}

	if err := s.storage.Save(ctx, updated); err != nil {
		return models.Settings{}, err
	}

	s.logger.Info().Int("fields", len(patch)).Msg("Settings updated")
	return updated, nil
}

// RotateTimestamps shifts lastRun into previousRun and stamps lastRun with
// now. Returns the previousRun instant after rotation, which the label
// recency filter compares against; zero when no earlier run exists.
func (s *Service) RotateTimestamps(ctx context.Context, now time.Time) (time.Time, error) {
	current, err := s.storage.Load(ctx)
	if err != nil {
		return time.Time{}, err
	}

	current.Timestamp.PreviousRun = current.Timestamp.LastRun
	current.Timestamp.LastRun = now.UTC().Format(time.RFC3339)

	if err := s.storage.Save(ctx, current); err != nil {
		return time.Time{}, err
	}

	return parseRunTimestamp(current.Timestamp.PreviousRun), nil
}

// parseRunTimestamp is lenient: an empty or unparsable value means no
// earlier run, so every labeled event counts as fresh.
func parseRunTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// mergeMaps deep-merges patch into base, returning base.
func mergeMaps(base, patch map[string]interface{}) map[string]interface{} {
	for key, patchValue := range patch {
		baseValue, exists := base[key]
		if !exists {
			base[key] = patchValue
			continue
		}

		baseMap, baseIsMap := baseValue.(map[string]interface{})
		patchMap, patchIsMap := patchValue.(map[string]interface{})
		if baseIsMap && patchIsMap {
			base[key] = mergeMaps(baseMap, patchMap)
			continue
		}

		base[key] = patchValue
	}
	return base
}
