package models

import "time"

// IssueList is an ordered sequence of normalized issues with its count
// persisted alongside. Count always equals len(Issues); it is stored
// explicitly because the report layer reads it without deserializing the
// full sequence.
type IssueList struct {
	Issues []NormalizedIssue `json:"issues"`
	Count  int               `json:"count"`
}

// SourceSection is the per-source portion of a run snapshot. Sections are
// written in found -> devOps -> newIssues order as the reconciler advances.
type SourceSection struct {
	Found     IssueList         `json:"found"`
	DevOps    []MirrorCandidate `json:"devOps"`
	NewIssues IssueList         `json:"newIssues"`
}

// RunSnapshot is the persisted per-run document, stored under the top-level
// "index" key. StartTime/EndTime are locale-rendered for display; the UTC
// instants are kept separately for the core's own comparisons.
type RunSnapshot struct {
	StartTime             string        `json:"startTime"`
	EndTime               string        `json:"endTime"`
	StartTimeUTC          time.Time     `json:"startTimeUtc"`
	EndTimeUTC            *time.Time    `json:"endTimeUtc"`
	StackOverflow         SourceSection `json:"stackOverflow"`
	InternalStackOverflow SourceSection `json:"internalStackOverflow"`
	GitHub                SourceSection `json:"github"`
}

// EmptySnapshot returns the canonical empty template a run starts from:
// all counts zero, all sequences empty, start time set, end time null.
func EmptySnapshot(start time.Time) RunSnapshot {
	empty := SourceSection{
		Found:     IssueList{Issues: []NormalizedIssue{}},
		DevOps:    []MirrorCandidate{},
		NewIssues: IssueList{Issues: []NormalizedIssue{}},
	}
	return RunSnapshot{
		StartTime:             start.Local().Format("1/2/2006, 3:04:05 PM"),
		EndTime:               "",
		StartTimeUTC:          start.UTC(),
		StackOverflow:         empty,
		InternalStackOverflow: empty,
		GitHub:                empty,
	}
}

// SectionKey maps a source to its snapshot document key.
func SectionKey(source Source) string {
	return string(source)
}
