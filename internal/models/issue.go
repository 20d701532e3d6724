// -----------------------------------------------------------------------
// Normalized issue - the unit of work flowing through the pipeline
// -----------------------------------------------------------------------

package models

// Source identifies which upstream an issue came from. The values double
// as JSON keys in the run snapshot and the query payload.
type Source string

const (
	SourceStackOverflow         Source = "stackOverflow"
	SourceInternalStackOverflow Source = "internalStackOverflow"
	SourceGitHub                Source = "github"
)

// DisplayName returns the human-readable service name used in progress
// reporting and error attribution.
func (s Source) DisplayName() string {
	switch s {
	case SourceStackOverflow:
		return "Stack Overflow"
	case SourceInternalStackOverflow:
		return "Internal Stack Overflow"
	case SourceGitHub:
		return "GitHub"
	default:
		return string(s)
	}
}

// ServiceAzureDevOps is the attribution label for errors raised by calls
// to the work-item tracker, regardless of which reconciler made the call.
const ServiceAzureDevOps = "Azure DevOps"

// NormalizedIssue is the uniform representation produced by the normalizer.
// IssueID is preserved exactly as the upstream assigned it (question id for
// Stack Overflow, issue number for GitHub).
type NormalizedIssue struct {
	IssueID    string `json:"issueId"`
	Source     Source `json:"source"`
	Title      string `json:"title"`
	Tags       string `json:"tags,omitempty"`
	SDK        string `json:"sdk,omitempty"`
	Repository string `json:"repository,omitempty"`
	URL        string `json:"url"`
}

// MirrorCandidate is a work item returned by the tracker that shares an
// upstream issue's id. Title is the tracker-stored title, which may have
// drifted from the upstream title.
type MirrorCandidate struct {
	WorkItemID  int    `json:"workItemId"`
	Title       string `json:"title"`
	WorkItemURL string `json:"workItemUrl"`
	IssueID     string `json:"issueId"`
	IssueURL    string `json:"issueUrl"`
}
