// -----------------------------------------------------------------------
// Job scheduler - owns the job registry, cancellation and run execution
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/reconcile"
	"github.com/ternarybob/colligo/internal/upstream"
)

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotRunning is returned when cancelling a terminal job.
	ErrJobNotRunning = errors.New("job is not running")
)

// githubQueryLabel is the label the SCM search filters on.
const githubQueryLabel = "support"

// maxRetainedJobs bounds the in-process registry; the oldest terminal
// jobs are evicted past this.
const maxRetainedJobs = 50

// SettingsProvider is the settings surface the scheduler needs.
type SettingsProvider interface {
	Get(ctx context.Context) (models.Settings, error)
	RotateTimestamps(ctx context.Context, now time.Time) (time.Time, error)
}

// SnapshotService extends the reconciler's section writer with whole-run
// lifecycle operations.
type SnapshotService interface {
	reconcile.SnapshotWriter
	Reset(ctx context.Context, start time.Time) error
	SetEndTime(ctx context.Context, end time.Time) error
}

// Summary is the list-endpoint projection of a job.
type Summary struct {
	ID          string           `json:"id"`
	Status      models.JobStatus `json:"status"`
	StartedAt   time.Time        `json:"startedAt"`
	FinishedAt  *time.Time       `json:"finishedAt,omitempty"`
	ElapsedTime int64            `json:"elapsedTime"`
}

type jobHandle struct {
	job    *models.Job
	cancel context.CancelFunc
}

// Scheduler multiplexes reconciliation runs over jobs. Jobs run on their
// own goroutine; the registry is mutated only under the mutex.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*jobHandle
	order    []string
	factory  ClientFactory
	settings SettingsProvider
	snapshot SnapshotService
	events   interfaces.EventService
	metrics  interfaces.Telemetry
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewScheduler creates a job scheduler.
func NewScheduler(factory ClientFactory, settings SettingsProvider, snapshot SnapshotService, events interfaces.EventService, metrics interfaces.Telemetry, logger arbor.ILogger) *Scheduler {
	if metrics == nil {
		metrics = interfaces.NoopTelemetry{}
	}
	return &Scheduler{
		jobs:     make(map[string]*jobHandle),
		factory:  factory,
		settings: settings,
		snapshot: snapshot,
		events:   events,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger,
	}
}

// Start validates the request, registers a running job and launches the
// run on its own goroutine. The returned job is a snapshot copy.
func (s *Scheduler) Start(ctx context.Context, req models.QueryRequest) (*models.Job, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	enabled := settings.EnabledServices
	if req.EnabledServices != nil {
		enabled = *req.EnabledServices
	}

	params := settings.QueryDefaults
	if req.Params != nil {
		params = *req.Params
	}
	if params.NumberOfDaysToQuery == 0 {
		params.NumberOfDaysToQuery = models.DefaultQueryParams().NumberOfDaysToQuery
	}

	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid query parameters: %w", err)
	}

	job := models.NewJob()
	job.Progress.Total = len(enabled.Ordered())

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.evictLocked()
	s.jobs[job.ID] = &jobHandle{job: job, cancel: cancel}
	s.order = append(s.order, job.ID)
	snapshot := copyJob(job)
	s.mu.Unlock()

	s.logger.Info().
		Str("job_id", job.ID).
		Int("sources", job.Progress.Total).
		Bool("push", params.PushToDevOps).
		Msg("Query job started")

	s.publish(interfaces.EventJobStarted, job.ID, nil)
	s.metrics.TrackEvent("query_started", map[string]string{"job_id": job.ID})

	go s.run(runCtx, job.ID, settings, enabled, params)

	return snapshot, nil
}

// Get returns a snapshot copy of the job.
func (s *Scheduler) Get(id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return copyJob(handle.job), nil
}

// Cancel signals the job's token and marks the job cancelled iff it is
// still running. Repeated cancels of a terminal job are a client error.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if handle.job.Status.IsTerminal() {
		return ErrJobNotRunning
	}

	now := time.Now()
	handle.job.Status = models.JobStatusCancelled
	handle.job.FinishedAt = &now
	handle.cancel()

	s.logger.Info().Str("job_id", id).Msg("Query job cancelled")
	go s.publish(interfaces.EventJobCancelled, id, nil)

	return nil
}

// List returns summaries of every retained job, newest first.
func (s *Scheduler) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]Summary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		handle, ok := s.jobs[s.order[i]]
		if !ok {
			continue
		}
		job := handle.job
		summaries = append(summaries, Summary{
			ID:          job.ID,
			Status:      job.Status,
			StartedAt:   job.StartedAt,
			FinishedAt:  job.FinishedAt,
			ElapsedTime: job.ElapsedMs(),
		})
	}
	return summaries
}

// evictLocked drops the oldest terminal jobs past the retention bound.
// Running jobs are never evicted. Caller holds the mutex.
func (s *Scheduler) evictLocked() {
	for len(s.order) >= maxRetainedJobs {
		evicted := false
		for i, id := range s.order {
			handle, ok := s.jobs[id]
			if ok && !handle.job.Status.IsTerminal() {
				continue
			}
			delete(s.jobs, id)
			s.order = append(s.order[:i], s.order[i+1:]...)
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

// run executes the job: timestamp rotation, snapshot reset, credential
// preflight, then each enabled source in the fixed order.
func (s *Scheduler) run(ctx context.Context, jobID string, settings models.Settings, enabled models.EnabledServices, params models.QueryParams) {
	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("internal failure: %v", r)
			s.logger.Error().Str("job_id", jobID).Str("panic", message).Msg("Query job panicked")
			s.metrics.TrackException(fmt.Errorf("%s", message))
			s.setTerminal(jobID, models.JobStatusError, message)
			s.publish(interfaces.EventJobError, jobID, message)
		}
	}()

	start := time.Now()
	bg := context.Background()

	previousRun, err := s.settings.RotateTimestamps(bg, start)
	if err != nil {
		s.failJob(jobID, fmt.Sprintf("failed to rotate run timestamps: %v", err))
		return
	}
	if err := s.snapshot.Reset(bg, start); err != nil {
		s.failJob(jobID, fmt.Sprintf("failed to reset snapshot: %v", err))
		return
	}

	ordered := enabled.Ordered()
	if len(ordered) == 0 {
		s.snapshot.SetEndTime(bg, time.Now())
		s.setTerminal(jobID, models.JobStatusCompleted, "")
		s.publish(interfaces.EventJobCompleted, jobID, nil)
		return
	}

	clients, err := s.factory.Build(bg, settings)
	if err != nil {
		s.appendServiceError(jobID, models.ServiceAzureDevOps, err.Error())
		s.snapshot.SetEndTime(bg, time.Now())
		s.setTerminal(jobID, models.JobStatusCompleted, "")
		s.publish(interfaces.EventJobCompleted, jobID, nil)
		return
	}

	// Tracker preflight: one minimal authenticated call before any fetch.
	// Failure completes the job with a single attributed service error and
	// zero source work.
	if !settings.UseTestData && params.PushToDevOps {
		if err := clients.TrackerValidator.Validate(ctx); err != nil {
			svcErr := upstream.AsServiceError(models.ServiceAzureDevOps, err)
			s.logger.Warn().Str("job_id", jobID).Err(err).Msg("Credential preflight failed")
			s.appendServiceError(jobID, svcErr.Service, svcErr.Message)
			s.snapshot.SetEndTime(bg, time.Now())
			s.setTerminal(jobID, models.JobStatusCompleted, "")
			s.publish(interfaces.EventJobCompleted, jobID, nil)
			return
		}
	}

	window := common.NewQueryWindow(start, params.NumberOfDaysToQuery, params.StartHour)
	rec := reconcile.New(clients.Tracker, s.snapshot, params.PushToDevOps, s.logger)

	cancelledMidRun := false
	for _, source := range ordered {
		if ctx.Err() != nil {
			cancelledMidRun = true
			break
		}

		service := source.DisplayName()
		s.setCurrentService(jobID, service)

		progress := func(unit string) {
			current := fmt.Sprintf("%s: %s", service, unit)
			s.setCurrentService(jobID, current)
			s.publish(interfaces.EventJobProgress, jobID, current)
		}

		var result models.SourceResult
		var runErr error

		switch source {
		case models.SourceStackOverflow:
			result, runErr = rec.RunQuestions(ctx, reconcile.QuestionSource{
				Source:   source,
				Client:   clients.StackOverflow,
				Tags:     settings.Repositories.StackOverflow,
				FromUnix: window.UnixSeconds(),
				SiteURL:  clients.StackOverflowSiteURL,
			}, progress)
		case models.SourceInternalStackOverflow:
			result, runErr = rec.RunQuestions(ctx, reconcile.QuestionSource{
				Source:   source,
				Client:   clients.InternalStackOverflow,
				Tags:     settings.Repositories.InternalStackOverflow,
				FromUnix: window.UnixSeconds(),
				SiteURL:  clients.InternalSiteURL,
			}, progress)
		case models.SourceGitHub:
			result, runErr = rec.RunGitHub(ctx, reconcile.GitHubSource{
				Client:       clients.GitHub,
				Repos:        settings.Repositories.GitHub,
				Label:        githubQueryLabel,
				CreatedAfter: window.ISO8601(),
				PreviousRun:  previousRun,
			}, progress)
		}

		s.setResult(jobID, models.SectionKey(source), result)

		if runErr != nil {
			if upstream.IsCancelled(runErr) {
				cancelledMidRun = true
				break
			}
			// a failed source becomes a service_errors entry; the job
			// continues with the next source
			svcErr := upstream.AsServiceError(service, runErr)
			s.logger.Warn().
				Str("job_id", jobID).
				Str("service", svcErr.Service).
				Err(runErr).
				Msg("Source failed")
			s.metrics.TrackException(runErr)
			s.appendServiceError(jobID, svcErr.Service, svcErr.Message)
		}

		s.incrementProgress(jobID)
	}

	s.snapshot.SetEndTime(bg, time.Now())

	if cancelledMidRun {
		s.setTerminal(jobID, models.JobStatusCancelled, "")
		s.publish(interfaces.EventJobCancelled, jobID, nil)
		return
	}

	s.setTerminal(jobID, models.JobStatusCompleted, "")
	s.publish(interfaces.EventJobCompleted, jobID, nil)
	s.metrics.TrackEvent("query_completed", map[string]string{"job_id": jobID})
}

func (s *Scheduler) publish(eventType interfaces.EventType, jobID string, payload interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(context.Background(), interfaces.Event{Type: eventType, JobID: jobID, Payload: payload})
}

// failJob marks a job errored before any source ran.
func (s *Scheduler) failJob(jobID, message string) {
	s.logger.Error().Str("job_id", jobID).Str("error", message).Msg("Query job failed")
	s.setTerminal(jobID, models.JobStatusError, message)
	s.publish(interfaces.EventJobError, jobID, message)
}

// setTerminal transitions a running job to a terminal status. Jobs already
// terminal (a raced cancel) are left untouched.
func (s *Scheduler) setTerminal(jobID string, status models.JobStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.jobs[jobID]
	if !ok || handle.job.Status.IsTerminal() {
		return
	}

	now := time.Now()
	handle.job.Status = status
	handle.job.FinishedAt = &now
	if message != "" {
		handle.job.Error = message
	}
	handle.cancel()
}

func (s *Scheduler) setCurrentService(jobID, service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle, ok := s.jobs[jobID]; ok {
		handle.job.Progress.CurrentService = service
	}
}

func (s *Scheduler) incrementProgress(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle, ok := s.jobs[jobID]; ok {
		handle.job.Progress.Current++
	}
}

func (s *Scheduler) setResult(jobID, section string, result models.SourceResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle, ok := s.jobs[jobID]; ok {
		handle.job.Result[section] = result
	}
}

func (s *Scheduler) appendServiceError(jobID, service, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle, ok := s.jobs[jobID]; ok {
		handle.job.ServiceErrors = append(handle.job.ServiceErrors, models.ServiceError{
			Service: service,
			Message: message,
		})
	}
}

// copyJob returns a deep enough copy for callers outside the mutex.
func copyJob(job *models.Job) *models.Job {
	copied := *job
	copied.Result = make(map[string]models.SourceResult, len(job.Result))
	for k, v := range job.Result {
		copied.Result[k] = v
	}
	copied.ServiceErrors = append([]models.ServiceError(nil), job.ServiceErrors...)
	if job.FinishedAt != nil {
		finished := *job.FinishedAt
		copied.FinishedAt = &finished
	}
	return &copied
}
