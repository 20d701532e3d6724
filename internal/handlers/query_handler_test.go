package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/jobs"
	"github.com/ternarybob/colligo/internal/models"
)

type fakeScheduler struct {
	job       *models.Job
	startErr  error
	cancelErr error
	lastReq   models.QueryRequest
}

func (f *fakeScheduler) Start(ctx context.Context, req models.QueryRequest) (*models.Job, error) {
	f.lastReq = req
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.job, nil
}

func (f *fakeScheduler) Get(id string) (*models.Job, error) {
	if f.job != nil && f.job.ID == id {
		return f.job, nil
	}
	return nil, jobs.ErrJobNotFound
}

func (f *fakeScheduler) Cancel(id string) error { return f.cancelErr }

func (f *fakeScheduler) List() []jobs.Summary {
	if f.job == nil {
		return []jobs.Summary{}
	}
	return []jobs.Summary{{ID: f.job.ID, Status: f.job.Status}}
}

type fakeSnapshotReader struct {
	doc []byte
}

func (f *fakeSnapshotReader) Document(ctx context.Context) ([]byte, error) {
	return f.doc, nil
}

func newTestHandler(scheduler *fakeScheduler) *QueryHandler {
	return NewQueryHandler(scheduler, &fakeSnapshotReader{}, arbor.NewLogger())
}

func TestStartQueryReturnsJobID(t *testing.T) {
	job := models.NewJob()
	h := newTestHandler(&fakeScheduler{job: job})

	body := strings.NewReader(`{"enabledServices":{"stackOverflow":true},"params":{"numberOfDaysToQuery":2,"startHour":10,"pushToDevOps":false}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/queries", body)
	rec := httptest.NewRecorder()

	h.QueriesHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, job.ID, resp["jobId"])
}

func TestStartQueryEmptyBodyUsesDefaults(t *testing.T) {
	job := models.NewJob()
	scheduler := &fakeScheduler{job: job}
	h := newTestHandler(scheduler)

	req := httptest.NewRequest(http.MethodPost, "/api/queries", nil)
	rec := httptest.NewRecorder()

	h.QueriesHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, scheduler.lastReq.EnabledServices)
	assert.Nil(t, scheduler.lastReq.Params)
}

func TestGetQuery(t *testing.T) {
	job := models.NewJob()
	job.Result["stackOverflow"] = models.SourceResult{Status: models.SourceResultOK, Code: 204, Message: "No new posts found."}
	h := newTestHandler(&fakeScheduler{job: job})

	req := httptest.NewRequest(http.MethodGet, "/api/queries/"+job.ID, nil)
	rec := httptest.NewRecorder()

	h.QueryRoutes(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status   models.JobStatus               `json:"status"`
		Result   map[string]models.SourceResult `json:"result"`
		Progress models.JobProgress             `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.JobStatusRunning, resp.Status)
	assert.Equal(t, 204, resp.Result["stackOverflow"].Code)
}

func TestGetQueryUnknownID(t *testing.T) {
	h := newTestHandler(&fakeScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/api/queries/does-not-exist", nil)
	rec := httptest.NewRecorder()

	h.QueryRoutes(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"running job", nil, http.StatusOK},
		{"terminal job", jobs.ErrJobNotRunning, http.StatusBadRequest},
		{"unknown job", jobs.ErrJobNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeScheduler{cancelErr: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/queries/some-id/cancel", nil)
			rec := httptest.NewRecorder()

			h.QueryRoutes(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestListQueries(t *testing.T) {
	job := models.NewJob()
	h := newTestHandler(&fakeScheduler{job: job})

	req := httptest.NewRequest(http.MethodGet, "/api/queries", nil)
	rec := httptest.NewRecorder()

	h.QueriesHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []jobs.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, job.ID, summaries[0].ID)
}

func TestSnapshotHandlerEmpty(t *testing.T) {
	h := NewQueryHandler(&fakeScheduler{}, &fakeSnapshotReader{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	rec := httptest.NewRecorder()

	h.SnapshotHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}
