package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

const settingsKey = "settings"

// settingsRecord is the stored shape of the settings document.
type settingsRecord struct {
	Key       string `badgerhold:"key"`
	Settings  models.Settings
	UpdatedAt time.Time
}

// SettingsStorage implements the SettingsStorage interface for Badger
type SettingsStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSettingsStorage creates a new SettingsStorage instance
func NewSettingsStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SettingsStorage {
	return &SettingsStorage{
		db:     db,
		logger: logger,
	}
}

// Load returns the stored settings document, falling back to the defaults
// when the store is empty (first start or after reset_on_startup).
func (s *SettingsStorage) Load(ctx context.Context) (models.Settings, error) {
	var record settingsRecord
	err := s.db.Store().Get(settingsKey, &record)
	if err == badgerhold.ErrNotFound {
		s.logger.Debug().Msg("No settings document found, using defaults")
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	return record.Settings, nil
}

// Save replaces the stored settings document.
func (s *SettingsStorage) Save(ctx context.Context, settings models.Settings) error {
	record := settingsRecord{
		Key:       settingsKey,
		Settings:  settings,
		UpdatedAt: time.Now(),
	}

	if err := s.db.Store().Upsert(settingsKey, &record); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}
