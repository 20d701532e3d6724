// -----------------------------------------------------------------------
// Normalizer - maps source-specific records to the uniform issue shape
// -----------------------------------------------------------------------

package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/upstream"
)

// maxTitleCodePoints bounds titles at the tracker's title field limit,
// counted in code points rather than bytes.
const maxTitleCodePoints = 255

// supportTag is written to System.Tags when a support label is present.
const supportTag = "[Support Labelled]"

// sdkBySuffix maps repository name suffixes to SDK display names.
var sdkBySuffix = []struct {
	suffix string
	sdk    string
}{
	{"-java", "Java"},
	{"-js", "Node"},
	{"-dotnet", "C#"},
	{"-python", "Python"},
	{"-go", "Go"},
	{"-ruby", "Ruby"},
}

// TruncateTitle caps a title at 255 code points. Shorter titles pass
// through untouched.
func TruncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleCodePoints {
		return title
	}
	return string(runes[:maxTitleCodePoints])
}

// SDKFromRepository derives the SDK display name from a repository
// short-name suffix. Unknown suffixes map to the literal "(Unknown)".
func SDKFromRepository(repo string) string {
	lower := strings.ToLower(repo)
	for _, m := range sdkBySuffix {
		if strings.HasSuffix(lower, m.suffix) {
			return m.sdk
		}
	}
	return "(Unknown)"
}

// supportTagFor returns the support marker when any label's lowercase name
// is "support" or "team: support".
func supportTagFor(labels []string) string {
	for _, l := range labels {
		switch strings.ToLower(l) {
		case "support", "team: support":
			return supportTag
		}
	}
	return ""
}

// Questions normalizes Stack Exchange questions fetched across one or more
// tags. Duplicates (the same question tagged with several queried tags) are
// collapsed by question id, keeping the first occurrence. The canonical URL
// is rebuilt from the site root rather than trusting the upstream link.
func Questions(questions []upstream.Question, source models.Source, siteURL string) []models.NormalizedIssue {
	seen := make(map[int64]bool, len(questions))
	issues := make([]models.NormalizedIssue, 0, len(questions))

	siteURL = strings.TrimRight(siteURL, "/")

	for _, q := range questions {
		if seen[q.QuestionID] {
			continue
		}
		seen[q.QuestionID] = true

		issues = append(issues, models.NormalizedIssue{
			IssueID: fmt.Sprintf("%d", q.QuestionID),
			Source:  source,
			Title:   TruncateTitle(q.Title),
			URL:     fmt.Sprintf("%s/questions/%d", siteURL, q.QuestionID),
		})
	}

	return issues
}

// labeledAfter reports whether the issue carries a labeling event for the
// queried label strictly after previousRun. The search's created: qualifier
// is only day-granular, so the per-event timestamp is authoritative.
func labeledAfter(issue upstream.GitHubIssue, label string, previousRun time.Time) bool {
	want := strings.ToLower(label)
	for _, ev := range issue.LabelEvents {
		if strings.ToLower(ev.Label) == want && ev.CreatedAt.After(previousRun) {
			return true
		}
	}
	return false
}

// GitHubIssues normalizes issues fetched across one or more repositories.
// Duplicates are collapsed by URL, keeping the first occurrence. When a
// label was queried, issues without a fresh labeling event for that label
// (strictly after previousRun) are dropped.
func GitHubIssues(ghIssues []upstream.GitHubIssue, queriedLabel string, previousRun time.Time) []models.NormalizedIssue {
	seen := make(map[string]bool, len(ghIssues))
	issues := make([]models.NormalizedIssue, 0, len(ghIssues))

	for _, gi := range ghIssues {
		if seen[gi.URL] {
			continue
		}
		seen[gi.URL] = true

		if queriedLabel != "" && !labeledAfter(gi, queriedLabel, previousRun) {
			continue
		}

		repo := strings.ToLower(gi.Repository)
		issues = append(issues, models.NormalizedIssue{
			IssueID:    fmt.Sprintf("%d", gi.Number),
			Source:     models.SourceGitHub,
			Title:      TruncateTitle(gi.Title),
			Tags:       supportTagFor(gi.Labels),
			SDK:        SDKFromRepository(repo),
			Repository: repo,
			URL:        gi.URL,
		})
	}

	return issues
}
