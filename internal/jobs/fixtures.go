// -----------------------------------------------------------------------
// Fixture clients - canned upstream responses for test-data mode
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/upstream"
)

// fixtureQuestions serves questions from a JSON file instead of the live
// API. A missing file means an empty result, so a fixture directory only
// needs the sources a test cares about.
type fixtureQuestions struct {
	path    string
	service string
	logger  arbor.ILogger
}

func (f *fixtureQuestions) FetchQuestions(ctx context.Context, tag string, fromUnix int64) ([]upstream.Question, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return []upstream.Question{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", f.path, err)
	}

	var questions []upstream.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, &upstream.ServiceError{Service: f.service, Kind: upstream.KindMalformed, Message: "fixture is not valid JSON", Err: err}
	}

	// fixtures carry all tags; filter like the API would
	var matched []upstream.Question
	for _, q := range questions {
		for _, t := range q.Tags {
			if strings.EqualFold(t, tag) {
				matched = append(matched, q)
				break
			}
		}
	}

	f.logger.Debug().Str("tag", tag).Int("count", len(matched)).Msg("Fixture questions served")
	return matched, nil
}

func (f *fixtureQuestions) Service() string { return f.service }

// fixtureSearcher serves GitHub issues from a JSON file, filtered by
// repository.
type fixtureSearcher struct {
	path   string
	logger arbor.ILogger
}

func (f *fixtureSearcher) SearchIssues(ctx context.Context, repo, label, createdAfter string, excludeLabels []string) ([]upstream.GitHubIssue, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return []upstream.GitHubIssue{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", f.path, err)
	}

	var issues []upstream.GitHubIssue
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, &upstream.ServiceError{Service: "GitHub", Kind: upstream.KindMalformed, Message: "fixture is not valid JSON", Err: err}
	}

	var matched []upstream.GitHubIssue
	for _, issue := range issues {
		if strings.EqualFold(issue.Repository, repo) {
			matched = append(matched, issue)
		}
	}

	f.logger.Debug().Str("repo", repo).Int("count", len(matched)).Msg("Fixture issues served")
	return matched, nil
}

// fixtureTracker records creates in memory and never finds existing
// mirrors, so every fixture issue classifies as new.
type fixtureTracker struct {
	mu      sync.Mutex
	created []models.NormalizedIssue
}

func (f *fixtureTracker) SearchWorkItemByIssueID(ctx context.Context, issueID string) ([]upstream.WorkItemRef, error) {
	return []upstream.WorkItemRef{}, nil
}

func (f *fixtureTracker) GetWorkItemByURL(ctx context.Context, itemURL string) (*upstream.WorkItem, error) {
	return nil, &upstream.ServiceError{Service: models.ServiceAzureDevOps, Kind: upstream.KindNotFound, Status: 404, Message: "resource not found"}
}

func (f *fixtureTracker) AddWorkItem(ctx context.Context, issue models.NormalizedIssue) (*upstream.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, issue)
	return &upstream.CreateResult{ID: 9000 + len(f.created)}, nil
}

func (f *fixtureTracker) Validate(ctx context.Context) error { return nil }

// newFixtureClients builds the test-data client set rooted at dir.
func newFixtureClients(dir string, logger arbor.ILogger) *RunClients {
	tracker := &fixtureTracker{}
	return &RunClients{
		StackOverflow: &fixtureQuestions{
			path:    filepath.Join(dir, "stackoverflow_questions.json"),
			service: "Stack Overflow",
			logger:  logger,
		},
		StackOverflowSiteURL: "https://stackoverflow.com",
		InternalStackOverflow: &fixtureQuestions{
			path:    filepath.Join(dir, "internal_questions.json"),
			service: "Internal Stack Overflow",
			logger:  logger,
		},
		InternalSiteURL: "https://internal.example.com",
		GitHub: &fixtureSearcher{
			path:   filepath.Join(dir, "github_issues.json"),
			logger: logger,
		},
		Tracker:          tracker,
		TrackerValidator: tracker,
	}
}
