package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

const snapshotKey = "snapshot"

// snapshotRecord stores the run snapshot as a raw JSON document. Keeping
// it opaque lets the snapshot service apply point-path updates without a
// full decode/encode cycle per section.
type snapshotRecord struct {
	Key       string `badgerhold:"key"`
	Doc       []byte
	UpdatedAt time.Time
}

// SnapshotStorage implements the SnapshotStorage interface for Badger
type SnapshotStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSnapshotStorage creates a new SnapshotStorage instance
func NewSnapshotStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SnapshotStorage {
	return &SnapshotStorage{
		db:     db,
		logger: logger,
	}
}

// Read returns the raw snapshot document, or nil when no run has been
// recorded yet.
func (s *SnapshotStorage) Read(ctx context.Context) ([]byte, error) {
	var record snapshotRecord
	err := s.db.Store().Get(snapshotKey, &record)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	return record.Doc, nil
}

// Write replaces the snapshot document.
func (s *SnapshotStorage) Write(ctx context.Context, doc []byte) error {
	record := snapshotRecord{
		Key:       snapshotKey,
		Doc:       doc,
		UpdatedAt: time.Now(),
	}

	if err := s.db.Store().Upsert(snapshotKey, &record); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}
