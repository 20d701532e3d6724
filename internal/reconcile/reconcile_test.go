package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/upstream"
)

type fakeQuestions struct {
	byTag  map[string][]upstream.Question
	err    error
	calls  int
	cancel context.CancelFunc
}

func (f *fakeQuestions) FetchQuestions(ctx context.Context, tag string, fromUnix int64) ([]upstream.Question, error) {
	f.calls++
	if f.cancel != nil {
		// cancel after the fetch completes, before the lookup phase
		defer f.cancel()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.byTag[tag], nil
}

func (f *fakeQuestions) Service() string { return "Stack Overflow" }

type fakeSearcher struct {
	byRepo map[string][]upstream.GitHubIssue
}

func (f *fakeSearcher) SearchIssues(ctx context.Context, repo, label, createdAfter string, excludeLabels []string) ([]upstream.GitHubIssue, error) {
	return f.byRepo[repo], nil
}

type fakeTracker struct {
	refs    map[string][]upstream.WorkItemRef
	items   map[string]*upstream.WorkItem
	created []models.NormalizedIssue
	addErr  error
}

func (f *fakeTracker) SearchWorkItemByIssueID(ctx context.Context, issueID string) ([]upstream.WorkItemRef, error) {
	return f.refs[issueID], nil
}

func (f *fakeTracker) GetWorkItemByURL(ctx context.Context, itemURL string) (*upstream.WorkItem, error) {
	item, ok := f.items[itemURL]
	if !ok {
		return nil, &upstream.ServiceError{Service: models.ServiceAzureDevOps, Kind: upstream.KindNotFound, Status: 404, Message: "resource not found"}
	}
	return item, nil
}

func (f *fakeTracker) AddWorkItem(ctx context.Context, issue models.NormalizedIssue) (*upstream.CreateResult, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.created = append(f.created, issue)
	return &upstream.CreateResult{ID: 1000 + len(f.created)}, nil
}

type memSnapshot struct {
	found     map[models.Source][]models.NormalizedIssue
	devOps    map[models.Source][]models.MirrorCandidate
	newIssues map[models.Source][]models.NormalizedIssue
}

func newMemSnapshot() *memSnapshot {
	return &memSnapshot{
		found:     make(map[models.Source][]models.NormalizedIssue),
		devOps:    make(map[models.Source][]models.MirrorCandidate),
		newIssues: make(map[models.Source][]models.NormalizedIssue),
	}
}

func (m *memSnapshot) SetFound(ctx context.Context, s models.Source, issues []models.NormalizedIssue) error {
	m.found[s] = issues
	return nil
}

func (m *memSnapshot) SetDevOps(ctx context.Context, s models.Source, c []models.MirrorCandidate) error {
	m.devOps[s] = c
	return nil
}

func (m *memSnapshot) SetNewIssues(ctx context.Context, s models.Source, issues []models.NormalizedIssue) error {
	m.newIssues[s] = issues
	return nil
}

func questionSource(client QuestionFetcher, tags ...string) QuestionSource {
	return QuestionSource{
		Source:  models.SourceStackOverflow,
		Client:  client,
		Tags:    tags,
		SiteURL: "https://stackoverflow.com",
	}
}

func TestEmptyFetchReportsNothingFound(t *testing.T) {
	tracker := &fakeTracker{}
	snap := newMemSnapshot()
	r := New(tracker, snap, true, arbor.NewLogger())

	result, err := r.RunQuestions(context.Background(),
		questionSource(&fakeQuestions{}, "azure-sdk"), nil)

	require.NoError(t, err)
	assert.Equal(t, models.SourceResultOK, result.Status)
	assert.Equal(t, 204, result.Code)
	assert.Equal(t, "No new posts found.", result.Message)
	assert.Empty(t, snap.found[models.SourceStackOverflow])
	assert.Empty(t, tracker.created)
}

func TestNewQuestionCreatesWorkItem(t *testing.T) {
	client := &fakeQuestions{byTag: map[string][]upstream.Question{
		"azure-sdk": {{QuestionID: 12345, Title: "T", Body: "B"}},
	}}
	tracker := &fakeTracker{}
	snap := newMemSnapshot()
	r := New(tracker, snap, true, arbor.NewLogger())

	result, err := r.RunQuestions(context.Background(), questionSource(client, "azure-sdk"), nil)

	require.NoError(t, err)
	assert.Equal(t, 200, result.Code)
	assert.Equal(t, 1, result.Created)

	require.Len(t, tracker.created, 1)
	assert.Equal(t, "12345", tracker.created[0].IssueID)
	assert.Equal(t, "T", tracker.created[0].Title)

	assert.Len(t, snap.found[models.SourceStackOverflow], 1)
	assert.Empty(t, snap.devOps[models.SourceStackOverflow])
	assert.Len(t, snap.newIssues[models.SourceStackOverflow], 1)
}

func TestExistingMatchSuppressesCreate(t *testing.T) {
	client := &fakeQuestions{byTag: map[string][]upstream.Question{
		"azure-sdk": {{QuestionID: 999, Title: "Existing"}},
	}}
	tracker := &fakeTracker{
		refs: map[string][]upstream.WorkItemRef{
			"999": {{ID: 1, URL: "https://dev.azure.com/_apis/wit/workItems/1"}},
		},
		items: map[string]*upstream.WorkItem{
			"https://dev.azure.com/_apis/wit/workItems/1": {
				ID:  1,
				URL: "https://dev.azure.com/_apis/wit/workItems/1",
				Fields: map[string]interface{}{
					"Custom.IssueID": "999",
					"System.Title":   "Existing",
				},
			},
		},
	}
	snap := newMemSnapshot()
	r := New(tracker, snap, true, arbor.NewLogger())

	result, err := r.RunQuestions(context.Background(), questionSource(client, "azure-sdk"), nil)

	require.NoError(t, err)
	assert.Equal(t, 204, result.Code)
	assert.Equal(t, "No new posts to add", result.Message)
	assert.Empty(t, tracker.created)
	assert.Len(t, snap.devOps[models.SourceStackOverflow], 1)
	assert.Empty(t, snap.newIssues[models.SourceStackOverflow])
}

func TestTitleDriftTriggersCreate(t *testing.T) {
	client := &fakeQuestions{byTag: map[string][]upstream.Question{
		"azure-sdk": {{QuestionID: 999, Title: "Existing"}},
	}}
	tracker := &fakeTracker{
		refs: map[string][]upstream.WorkItemRef{
			"999": {{ID: 1, URL: "u1"}},
		},
		items: map[string]*upstream.WorkItem{
			"u1": {ID: 1, URL: "u1", Fields: map[string]interface{}{
				"Custom.IssueID": "999",
				"System.Title":   "Different",
			}},
		},
	}
	snap := newMemSnapshot()
	r := New(tracker, snap, true, arbor.NewLogger())

	result, err := r.RunQuestions(context.Background(), questionSource(client, "azure-sdk"), nil)

	require.NoError(t, err)
	assert.Equal(t, 200, result.Code)
	// the drifted match stays visible in devOps while the issue is recreated
	assert.Len(t, snap.devOps[models.SourceStackOverflow], 1)
	assert.Len(t, snap.newIssues[models.SourceStackOverflow], 1)
	assert.Len(t, tracker.created, 1)
}

func TestThrottledRepoThenSuccess(t *testing.T) {
	// repo-a's 429 was absorbed by the client into an empty result
	previousRun := time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC)
	searcher := &fakeSearcher{byRepo: map[string][]upstream.GitHubIssue{
		"repo-a": {},
		"sdk-python": {{
			Number:     7,
			Title:      "ingest fails",
			URL:        "https://github.com/org/sdk-python/issues/7",
			Repository: "sdk-python",
			Labels:     []string{"support"},
			LabelEvents: []upstream.LabelEvent{
				{Label: "support", CreatedAt: previousRun.Add(time.Hour)},
			},
		}},
	}}
	tracker := &fakeTracker{}
	snap := newMemSnapshot()
	r := New(tracker, snap, true, arbor.NewLogger())

	var units []string
	result, err := r.RunGitHub(context.Background(), GitHubSource{
		Client:       searcher,
		Repos:        []string{"repo-a", "sdk-python"},
		Label:        "support",
		CreatedAfter: "2025-11-13T00:00:00Z",
		PreviousRun:  previousRun,
	}, func(unit string) { units = append(units, unit) })

	require.NoError(t, err)
	assert.Equal(t, 200, result.Code)
	assert.Equal(t, []string{"repo-a", "sdk-python"}, units)

	require.Len(t, snap.newIssues[models.SourceGitHub], 1)
	got := snap.newIssues[models.SourceGitHub][0]
	assert.Equal(t, "[Support Labelled]", got.Tags)
	assert.Equal(t, "Python", got.SDK)
	require.Len(t, tracker.created, 1)
}

func TestPushDisabledMakesNoCreates(t *testing.T) {
	client := &fakeQuestions{byTag: map[string][]upstream.Question{
		"azure-sdk": {{QuestionID: 1, Title: "a"}, {QuestionID: 2, Title: "b"}},
	}}
	tracker := &fakeTracker{}
	snap := newMemSnapshot()
	r := New(tracker, snap, false, arbor.NewLogger())

	result, err := r.RunQuestions(context.Background(), questionSource(client, "azure-sdk"), nil)

	require.NoError(t, err)
	assert.Equal(t, 200, result.Code)
	assert.Equal(t, "2 new issue(s) found but not pushed", result.Message)
	assert.Empty(t, tracker.created)
	assert.Len(t, snap.newIssues[models.SourceStackOverflow], 2)
}

func TestCancelAfterFetchSkipsLookupAndCreate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeQuestions{
		byTag: map[string][]upstream.Question{
			"azure-sdk": {{QuestionID: 5, Title: "t"}},
		},
		cancel: cancel,
	}
	tracker := &fakeTracker{}
	snap := newMemSnapshot()
	r := New(tracker, snap, true, arbor.NewLogger())

	result, err := r.RunQuestions(ctx, questionSource(client, "azure-sdk"), nil)

	require.Error(t, err)
	assert.True(t, upstream.IsCancelled(err))
	assert.Equal(t, models.SourceResultError, result.Status)
	// found was persisted before the checkpoint fired
	assert.Len(t, snap.found[models.SourceStackOverflow], 1)
	assert.Empty(t, tracker.created)
}

func TestTrackerErrorAttribution(t *testing.T) {
	client := &fakeQuestions{byTag: map[string][]upstream.Question{
		"azure-sdk": {{QuestionID: 3, Title: "x"}},
	}}
	tracker := &fakeTracker{
		addErr: &upstream.ServiceError{Service: models.ServiceAzureDevOps, Kind: upstream.KindAuth, Status: 401, Message: "credentials are invalid or expired"},
	}
	snap := newMemSnapshot()
	r := New(tracker, snap, true, arbor.NewLogger())

	result, err := r.RunQuestions(context.Background(), questionSource(client, "azure-sdk"), nil)

	require.Error(t, err)
	svcErr := upstream.AsServiceError("Stack Overflow", err)
	assert.Equal(t, models.ServiceAzureDevOps, svcErr.Service)
	assert.Equal(t, models.SourceResultError, result.Status)
	assert.Equal(t, 401, result.Code)
}

func TestExistsImpliesIdenticalTitle(t *testing.T) {
	// every issue classified EXISTS must have a same-id, same-title candidate
	client := &fakeQuestions{byTag: map[string][]upstream.Question{
		"azure-sdk": {
			{QuestionID: 1, Title: "same"},
			{QuestionID: 2, Title: "drifted"},
		},
	}}
	tracker := &fakeTracker{
		refs: map[string][]upstream.WorkItemRef{
			"1": {{ID: 10, URL: "u10"}},
			"2": {{ID: 20, URL: "u20"}},
		},
		items: map[string]*upstream.WorkItem{
			"u10": {ID: 10, URL: "u10", Fields: map[string]interface{}{"System.Title": "same"}},
			"u20": {ID: 20, URL: "u20", Fields: map[string]interface{}{"System.Title": "was renamed"}},
		},
	}
	snap := newMemSnapshot()
	r := New(tracker, snap, true, arbor.NewLogger())

	_, err := r.RunQuestions(context.Background(), questionSource(client, "azure-sdk"), nil)
	require.NoError(t, err)

	newIDs := make(map[string]bool)
	for _, issue := range snap.newIssues[models.SourceStackOverflow] {
		newIDs[issue.IssueID] = true
	}
	for _, issue := range snap.found[models.SourceStackOverflow] {
		if newIDs[issue.IssueID] {
			continue
		}
		matched := false
		for _, c := range snap.devOps[models.SourceStackOverflow] {
			if c.IssueID == issue.IssueID && c.Title == issue.Title {
				matched = true
			}
		}
		assert.True(t, matched, fmt.Sprintf("issue %s classified EXISTS without identical-title candidate", issue.IssueID))
	}
}
