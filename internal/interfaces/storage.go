package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/colligo/internal/models"
)

// ErrKeyNotFound is returned when a secret or document key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// SettingsStorage persists the runtime settings document.
type SettingsStorage interface {
	// Load returns the stored settings, or the defaults when none exist yet.
	Load(ctx context.Context) (models.Settings, error)
	// Save replaces the stored settings document.
	Save(ctx context.Context, settings models.Settings) error
}

// SecretStorage persists credential material. Implementations are expected
// to be backed by an OS keychain in the desktop build; the embedded store
// is the fallback used here.
type SecretStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
}

// SnapshotStorage persists the per-run snapshot document. The document is
// JSON with a single top-level "index" record; writes replace the whole
// document atomically.
type SnapshotStorage interface {
	// Read returns the raw snapshot document, or nil when no run has been
	// recorded yet.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the snapshot document.
	Write(ctx context.Context, doc []byte) error
}

// StorageManager aggregates the storage backends behind one lifecycle.
type StorageManager interface {
	SettingsStorage() SettingsStorage
	SecretStorage() SecretStorage
	SnapshotStorage() SnapshotStorage
	Close() error
}
