// -----------------------------------------------------------------------
// Query job - in-process job record for the scheduler
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a query job. A job never leaves
// running without exactly one terminal status being set.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusError     JobStatus = "error"
)

// IsTerminal returns true once the job has finished, one way or another.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusError
}

// JobProgress reports how far through its enabled sources a job is.
// Total is the count of enabled sources; CurrentService names the upstream
// unit currently being fetched.
type JobProgress struct {
	Current        int    `json:"current"`
	Total          int    `json:"total"`
	CurrentService string `json:"currentService"`
}

// ServiceError attributes a reconciler failure to the upstream that
// actually failed. The job still completes; these drive UI banners.
type ServiceError struct {
	Service string `json:"service"`
	Message string `json:"message"`
}

// SourceResult is the caller-observable terminal report for one source.
// Code carries the HTTP-flavored outcome (200 created or pushed-off
// summary, 204 nothing new); Created counts work items actually written.
type SourceResult struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Created int    `json:"created"`
}

const (
	SourceResultOK    = "ok"
	SourceResultError = "error"
)

// Job is the scheduler's record of one query run. Result maps snapshot
// section keys to per-source reports once each source finishes.
type Job struct {
	ID            string                  `json:"id"`
	Status        JobStatus               `json:"status"`
	Progress      JobProgress             `json:"progress"`
	Result        map[string]SourceResult `json:"result,omitempty"`
	ServiceErrors []ServiceError          `json:"serviceErrors"`
	Error         string                  `json:"error,omitempty"`
	StartedAt     time.Time               `json:"startedAt"`
	FinishedAt    *time.Time              `json:"finishedAt,omitempty"`
}

// NewJob creates a running job with a fresh UUID.
func NewJob() *Job {
	return &Job{
		ID:            uuid.New().String(),
		Status:        JobStatusRunning,
		Result:        make(map[string]SourceResult),
		ServiceErrors: []ServiceError{},
		StartedAt:     time.Now(),
	}
}

// ElapsedMs returns wall-clock time since start, frozen at FinishedAt for
// terminal jobs.
func (j *Job) ElapsedMs() int64 {
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(j.StartedAt).Milliseconds()
	}
	return time.Since(j.StartedAt).Milliseconds()
}

// EnabledServices selects which sources a query run polls.
type EnabledServices struct {
	StackOverflow         bool `json:"stackOverflow"`
	InternalStackOverflow bool `json:"internalStackOverflow"`
	GitHub                bool `json:"github"`
}

// Ordered returns the enabled sources in the fixed processing order.
func (e EnabledServices) Ordered() []Source {
	var order []Source
	if e.StackOverflow {
		order = append(order, SourceStackOverflow)
	}
	if e.InternalStackOverflow {
		order = append(order, SourceInternalStackOverflow)
	}
	if e.GitHub {
		order = append(order, SourceGitHub)
	}
	return order
}

// QueryParams are the user-supplied knobs for one run.
type QueryParams struct {
	NumberOfDaysToQuery int  `json:"numberOfDaysToQuery" validate:"min=1,max=365"`
	StartHour           int  `json:"startHour" validate:"min=0,max=23"`
	PushToDevOps        bool `json:"pushToDevOps"`
}

// QueryRequest is the POST /api/queries payload.
type QueryRequest struct {
	EnabledServices *EnabledServices `json:"enabledServices"`
	Params          *QueryParams     `json:"params"`
}

// DefaultEnabledServices matches the shipped settings: public Stack
// Overflow and GitHub on, the internal instance off.
func DefaultEnabledServices() EnabledServices {
	return EnabledServices{StackOverflow: true, InternalStackOverflow: false, GitHub: true}
}

// DefaultQueryParams returns the defaults applied when params are absent.
func DefaultQueryParams() QueryParams {
	return QueryParams{NumberOfDaysToQuery: 1, StartHour: 10, PushToDevOps: true}
}
