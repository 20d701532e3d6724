// -----------------------------------------------------------------------
// Reconciler - per-source fetch, lookup, diff and create pipeline
// -----------------------------------------------------------------------

package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/normalize"
	"github.com/ternarybob/colligo/internal/upstream"
)

// QuestionFetcher fetches questions by tag from a Stack Exchange instance.
type QuestionFetcher interface {
	FetchQuestions(ctx context.Context, tag string, fromUnix int64) ([]upstream.Question, error)
	Service() string
}

// IssueSearcher searches open issues per repository on the SCM host.
type IssueSearcher interface {
	SearchIssues(ctx context.Context, repo, label, createdAfter string, excludeLabels []string) ([]upstream.GitHubIssue, error)
}

// Tracker is the work-item tracker surface the reconciler needs.
type Tracker interface {
	SearchWorkItemByIssueID(ctx context.Context, issueID string) ([]upstream.WorkItemRef, error)
	GetWorkItemByURL(ctx context.Context, itemURL string) (*upstream.WorkItem, error)
	AddWorkItem(ctx context.Context, issue models.NormalizedIssue) (*upstream.CreateResult, error)
}

// SnapshotWriter receives the per-source sections as they complete, in
// found, devOps, newIssues order.
type SnapshotWriter interface {
	SetFound(ctx context.Context, source models.Source, issues []models.NormalizedIssue) error
	SetDevOps(ctx context.Context, source models.Source, candidates []models.MirrorCandidate) error
	SetNewIssues(ctx context.Context, source models.Source, issues []models.NormalizedIssue) error
}

// ProgressFunc is invoked before each upstream unit of work with the
// unit's human-readable name (tag or repository).
type ProgressFunc func(unit string)

// QuestionSource describes one Stack Exchange run.
type QuestionSource struct {
	Source   models.Source
	Client   QuestionFetcher
	Tags     []string
	FromUnix int64
	SiteURL  string
}

// GitHubSource describes one SCM issues run. CreatedAfter is the ISO-8601
// query lower bound; PreviousRun drives the per-event label recency filter.
type GitHubSource struct {
	Client        IssueSearcher
	Repos         []string
	Label         string
	ExcludeLabels []string
	CreatedAfter  string
	PreviousRun   time.Time
}

// Reconciler drives one source through fetch, normalize, mirror lookup,
// diff and optional create. Errors are returned as values attributed to
// the upstream that actually failed; the scheduler decides what to do
// with them.
type Reconciler struct {
	tracker  Tracker
	snapshot SnapshotWriter
	push     bool
	logger   arbor.ILogger
}

// New creates a reconciler for one run. push gates work-item creation.
func New(tracker Tracker, snapshot SnapshotWriter, push bool, logger arbor.ILogger) *Reconciler {
	return &Reconciler{
		tracker:  tracker,
		snapshot: snapshot,
		push:     push,
		logger:   logger,
	}
}

func errResult(err *upstream.ServiceError) models.SourceResult {
	return models.SourceResult{
		Status:  models.SourceResultError,
		Code:    err.Status,
		Message: err.Error(),
	}
}

func cancelled(service string, ctx context.Context) (models.SourceResult, error) {
	svcErr := upstream.ClassifyTransport(service, ctx.Err())
	return errResult(svcErr), svcErr
}

// RunQuestions executes the pipeline for a Stack Exchange instance. All
// tags are fetched first (one request per tag, client-paced), then the
// combined result is deduplicated and reconciled.
func (r *Reconciler) RunQuestions(ctx context.Context, src QuestionSource, progress ProgressFunc) (models.SourceResult, error) {
	service := src.Source.DisplayName()

	var questions []upstream.Question
	for _, tag := range src.Tags {
		if ctx.Err() != nil {
			return cancelled(service, ctx)
		}
		if progress != nil {
			progress(tag)
		}

		fetched, err := src.Client.FetchQuestions(ctx, tag, src.FromUnix)
		if err != nil {
			svcErr := upstream.AsServiceError(service, err)
			return errResult(svcErr), svcErr
		}
		questions = append(questions, fetched...)
	}

	issues := normalize.Questions(questions, src.Source, src.SiteURL)

	r.logger.Info().
		Str("source", string(src.Source)).
		Int("fetched", len(questions)).
		Int("deduplicated", len(issues)).
		Msg("Questions fetched")

	return r.reconcile(ctx, src.Source, issues, "posts")
}

// RunGitHub executes the pipeline for the SCM issues source. One search
// per repository, then label-recency filtering and deduplication.
func (r *Reconciler) RunGitHub(ctx context.Context, src GitHubSource, progress ProgressFunc) (models.SourceResult, error) {
	service := models.SourceGitHub.DisplayName()

	var ghIssues []upstream.GitHubIssue
	for _, repo := range src.Repos {
		if ctx.Err() != nil {
			return cancelled(service, ctx)
		}
		if progress != nil {
			progress(repo)
		}

		fetched, err := src.Client.SearchIssues(ctx, repo, src.Label, src.CreatedAfter, src.ExcludeLabels)
		if err != nil {
			svcErr := upstream.AsServiceError(service, err)
			return errResult(svcErr), svcErr
		}
		ghIssues = append(ghIssues, fetched...)
	}

	issues := normalize.GitHubIssues(ghIssues, src.Label, src.PreviousRun)

	r.logger.Info().
		Int("fetched", len(ghIssues)).
		Int("kept", len(issues)).
		Msg("GitHub issues fetched")

	return r.reconcile(ctx, models.SourceGitHub, issues, "issues")
}

// reconcile runs the shared lookup, diff and create phases. noun is the
// source's item word for user-facing messages ("posts" or "issues").
func (r *Reconciler) reconcile(ctx context.Context, source models.Source, issues []models.NormalizedIssue, noun string) (models.SourceResult, error) {
	service := source.DisplayName()

	if err := r.snapshot.SetFound(ctx, source, issues); err != nil {
		svcErr := upstream.AsServiceError(service, err)
		return errResult(svcErr), svcErr
	}

	if len(issues) == 0 {
		return models.SourceResult{
			Status:  models.SourceResultOK,
			Code:    204,
			Message: fmt.Sprintf("No new %s found.", noun),
		}, nil
	}

	devOps := []models.MirrorCandidate{}
	newIssues := []models.NormalizedIssue{}

	for _, issue := range issues {
		if ctx.Err() != nil {
			return cancelled(service, ctx)
		}

		// Tracker calls are attributed to the tracker, not to the source
		// pipeline that made them.
		refs, err := r.tracker.SearchWorkItemByIssueID(ctx, issue.IssueID)
		if err != nil {
			svcErr := upstream.AsServiceError(models.ServiceAzureDevOps, err)
			return errResult(svcErr), svcErr
		}

		matched := false
		for _, ref := range refs {
			if ctx.Err() != nil {
				return cancelled(service, ctx)
			}

			item, err := r.tracker.GetWorkItemByURL(ctx, ref.URL)
			if err != nil {
				svcErr := upstream.AsServiceError(models.ServiceAzureDevOps, err)
				return errResult(svcErr), svcErr
			}

			devOps = append(devOps, models.MirrorCandidate{
				WorkItemID:  item.ID,
				Title:       item.Field("System.Title"),
				WorkItemURL: item.URL,
				IssueID:     issue.IssueID,
				IssueURL:    issue.URL,
			})

			// Case-sensitive title equality is the match criterion. A hit
			// whose title has drifted still lands in devOps, but the issue
			// is treated as new so a re-titled item gets recreated.
			if item.Field("System.Title") == issue.Title {
				matched = true
			}
		}

		if !matched {
			newIssues = append(newIssues, issue)
		}
	}

	if err := r.snapshot.SetDevOps(ctx, source, devOps); err != nil {
		svcErr := upstream.AsServiceError(service, err)
		return errResult(svcErr), svcErr
	}
	if err := r.snapshot.SetNewIssues(ctx, source, newIssues); err != nil {
		svcErr := upstream.AsServiceError(service, err)
		return errResult(svcErr), svcErr
	}

	if len(newIssues) == 0 {
		return models.SourceResult{
			Status:  models.SourceResultOK,
			Code:    204,
			Message: fmt.Sprintf("No new %s to add", noun),
		}, nil
	}

	if !r.push {
		return models.SourceResult{
			Status:  models.SourceResultOK,
			Code:    200,
			Message: fmt.Sprintf("%d new issue(s) found but not pushed", len(newIssues)),
		}, nil
	}

	created := 0
	for _, issue := range newIssues {
		if ctx.Err() != nil {
			return cancelled(service, ctx)
		}

		if _, err := r.tracker.AddWorkItem(ctx, issue); err != nil {
			svcErr := upstream.AsServiceError(models.ServiceAzureDevOps, err)
			result := errResult(svcErr)
			result.Created = created
			return result, svcErr
		}
		created++
	}

	r.logger.Info().
		Str("source", string(source)).
		Int("created", created).
		Msg("Work items created")

	return models.SourceResult{
		Status:  models.SourceResultOK,
		Code:    200,
		Message: fmt.Sprintf("%d work item(s) created", created),
		Created: created,
	}, nil
}
