package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// secretRecord is the stored shape of one credential. The desktop build
// keeps these in the OS keychain; the embedded store is the server-mode
// fallback.
type secretRecord struct {
	Key       string `badgerhold:"key"`
	Value     string
	UpdatedAt time.Time
}

// SecretStorage implements the SecretStorage interface for Badger
type SecretStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSecretStorage creates a new SecretStorage instance
func NewSecretStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SecretStorage {
	return &SecretStorage{
		db:     db,
		logger: logger,
	}
}

func secretStoreKey(key string) string {
	return "secret:" + strings.ToLower(strings.TrimSpace(key))
}

// Get retrieves a secret value by key.
func (s *SecretStorage) Get(ctx context.Context, key string) (string, error) {
	var record secretRecord
	err := s.db.Store().Get(secretStoreKey(key), &record)
	if err == badgerhold.ErrNotFound {
		return "", interfaces.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get secret: %w", err)
	}

	return record.Value, nil
}

// Set inserts or updates a secret.
func (s *SecretStorage) Set(ctx context.Context, key, value string) error {
	record := secretRecord{
		Key:       secretStoreKey(key),
		Value:     value,
		UpdatedAt: time.Now(),
	}

	if err := s.db.Store().Upsert(record.Key, &record); err != nil {
		return fmt.Errorf("failed to set secret: %w", err)
	}

	s.logger.Debug().Str("key", key).Msg("Secret stored")
	return nil
}

// Delete removes a secret. Deleting an absent key is not an error.
func (s *SecretStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Delete(secretStoreKey(key), &secretRecord{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}

// Has reports whether a non-empty value is stored under key.
func (s *SecretStorage) Has(ctx context.Context, key string) (bool, error) {
	value, err := s.Get(ctx, key)
	if err == interfaces.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value != "", nil
}
