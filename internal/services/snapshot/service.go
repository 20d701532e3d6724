// -----------------------------------------------------------------------
// Snapshot service - incremental point-path updates to the run document
// -----------------------------------------------------------------------

package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Service owns the persisted run snapshot. The document holds a single
// top-level "index" record; section updates are applied as point-path
// writes so a partially completed run is always readable.
type Service struct {
	storage interfaces.SnapshotStorage
	logger  arbor.ILogger
}

// NewService creates a new snapshot service
func NewService(storage interfaces.SnapshotStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// Reset overwrites the document with the canonical empty template. Called
// at the start of every run before any source is processed.
func (s *Service) Reset(ctx context.Context, start time.Time) error {
	doc, err := json.Marshal(map[string]models.RunSnapshot{"index": models.EmptySnapshot(start)})
	if err != nil {
		return fmt.Errorf("failed to marshal empty snapshot: %w", err)
	}
	return s.storage.Write(ctx, doc)
}

func (s *Service) update(ctx context.Context, path string, value interface{}) error {
	doc, err := s.storage.Read(ctx)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("snapshot document does not exist, Reset must run first")
	}

	updated, err := sjson.SetBytes(doc, path, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}

	return s.storage.Write(ctx, updated)
}

// SetFound records the deduplicated fetch result for one source.
func (s *Service) SetFound(ctx context.Context, source models.Source, issues []models.NormalizedIssue) error {
	path := "index." + models.SectionKey(source) + ".found"
	return s.update(ctx, path, models.IssueList{Issues: issues, Count: len(issues)})
}

// SetDevOps records the mirror candidates found in the tracker for one
// source.
func (s *Service) SetDevOps(ctx context.Context, source models.Source, candidates []models.MirrorCandidate) error {
	path := "index." + models.SectionKey(source) + ".devOps"
	return s.update(ctx, path, candidates)
}

// SetNewIssues records the issues classified as new for one source.
func (s *Service) SetNewIssues(ctx context.Context, source models.Source, issues []models.NormalizedIssue) error {
	path := "index." + models.SectionKey(source) + ".newIssues"
	return s.update(ctx, path, models.IssueList{Issues: issues, Count: len(issues)})
}

// SetEndTime stamps the run's completion instant, in both the display
// rendering and UTC.
func (s *Service) SetEndTime(ctx context.Context, end time.Time) error {
	doc, err := s.storage.Read(ctx)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("snapshot document does not exist, Reset must run first")
	}

	updated, err := sjson.SetBytes(doc, "index.endTime", end.Local().Format("1/2/2006, 3:04:05 PM"))
	if err != nil {
		return fmt.Errorf("failed to set end time: %w", err)
	}
	updated, err = sjson.SetBytes(updated, "index.endTimeUtc", end.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to set end time: %w", err)
	}

	return s.storage.Write(ctx, updated)
}

// Document returns the raw snapshot document for the report layer, or nil
// when no run has been recorded.
func (s *Service) Document(ctx context.Context) ([]byte, error) {
	return s.storage.Read(ctx)
}

// Snapshot decodes the current run snapshot. Returns the zero value when
// no run has been recorded.
func (s *Service) Snapshot(ctx context.Context) (models.RunSnapshot, error) {
	doc, err := s.storage.Read(ctx)
	if err != nil {
		return models.RunSnapshot{}, err
	}
	if doc == nil {
		return models.RunSnapshot{}, nil
	}

	index := gjson.GetBytes(doc, "index")
	if !index.Exists() {
		return models.RunSnapshot{}, fmt.Errorf("snapshot document is missing the index record")
	}

	var snapshot models.RunSnapshot
	if err := json.Unmarshal([]byte(index.Raw), &snapshot); err != nil {
		return models.RunSnapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return snapshot, nil
}
