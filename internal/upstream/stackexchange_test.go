package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchQuestionsParsesItems(t *testing.T) {
	var gotReq *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.Write([]byte(`{"items":[{"question_id":101,"title":"How do I retry uploads?","link":"https://stackoverflow.com/q/101","tags":["my-sdk-go"],"creation_date":1700000000}]}`))
	}))
	defer server.Close()

	client := NewStackOverflowClient(server.URL, WithStackExchangePacing(0))
	questions, err := client.FetchQuestions(context.Background(), "my-sdk-go", 1699990000)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, int64(101), questions[0].QuestionID)
	assert.Equal(t, "How do I retry uploads?", questions[0].Title)

	query := gotReq.URL.Query()
	assert.Equal(t, "1699990000", query.Get("fromdate"))
	assert.Equal(t, "my-sdk-go", query.Get("tagged"))
	assert.Equal(t, "stackoverflow", query.Get("site"))
	assert.Equal(t, "withbody", query.Get("filter"))
	assert.Equal(t, "colligo-stackoverflow-query", gotReq.Header.Get("User-Agent"))
	assert.Empty(t, gotReq.Header.Get("X-API-Key"))
}

func TestFetchQuestionsInternalInstance(t *testing.T) {
	var gotReq *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client := NewInternalStackOverflowClient(server.URL, "team-key", WithStackExchangePacing(0))
	questions, err := client.FetchQuestions(context.Background(), "my-sdk-java", 0)
	require.NoError(t, err)
	assert.Empty(t, questions)

	assert.Equal(t, "team-key", gotReq.Header.Get("X-API-Key"))
	assert.Equal(t, "colligo-internal-stackoverflow-query", gotReq.Header.Get("User-Agent"))
	assert.Empty(t, gotReq.URL.Query().Get("site"))
}

func TestFetchQuestionsThrottleYieldsEmpty(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewStackOverflowClient(server.URL,
		WithStackExchangePacing(0),
		WithThrottleBackoff(10*time.Millisecond))

	start := time.Now()
	questions, err := client.FetchQuestions(context.Background(), "my-sdk-go", 0)
	require.NoError(t, err)
	assert.NotNil(t, questions)
	assert.Empty(t, questions)
	assert.Equal(t, 1, requests, "a throttled tag is not retried")
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestFetchQuestionsThrottleRespectsCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewStackOverflowClient(server.URL,
		WithStackExchangePacing(0),
		WithThrottleBackoff(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.FetchQuestions(ctx, "my-sdk-go", 0)
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
}

func TestFetchQuestionsMissingItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quota_remaining":5}`))
	}))
	defer server.Close()

	client := NewStackOverflowClient(server.URL, WithStackExchangePacing(0))
	_, err := client.FetchQuestions(context.Background(), "my-sdk-go", 0)
	require.Error(t, err)

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, KindMalformed, svcErr.Kind)
	assert.Equal(t, "Stack Overflow", svcErr.Service)
}

func TestFetchQuestionsAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewInternalStackOverflowClient(server.URL, "stale-key", WithStackExchangePacing(0))
	_, err := client.FetchQuestions(context.Background(), "my-sdk-go", 0)
	require.Error(t, err)

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, KindAuth, svcErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, svcErr.Status)
	assert.Equal(t, "Internal Stack Overflow", svcErr.Service)
}

func TestStackExchangeValidate(t *testing.T) {
	var gotReq *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client := NewInternalStackOverflowClient(server.URL, "team-key")
	require.NoError(t, client.Validate(context.Background()))
	assert.Equal(t, "1", gotReq.URL.Query().Get("pagesize"))
	assert.Equal(t, "team-key", gotReq.Header.Get("X-API-Key"))
}
