// -----------------------------------------------------------------------
// Azure DevOps client - WIQL search, work-item fetch and JSON-Patch create
// -----------------------------------------------------------------------

package upstream

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

// DefaultAzureDevOpsBaseURL is the Azure DevOps services root.
const DefaultAzureDevOpsBaseURL = "https://dev.azure.com"

// WorkItemRef is one entry of a WIQL result: the id plus the
// tracker-supplied URL used verbatim for the follow-up fetch.
type WorkItemRef struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

type wiqlResponse struct {
	WorkItems []WorkItemRef `json:"workItems"`
}

// WorkItem is a fetched work item with the fields the reconciler compares.
type WorkItem struct {
	ID     int                    `json:"id"`
	URL    string                 `json:"url"`
	Fields map[string]interface{} `json:"fields"`
}

// Field returns a string field value, or empty when absent or non-string.
func (w *WorkItem) Field(name string) string {
	if w.Fields == nil {
		return ""
	}
	if v, ok := w.Fields[name].(string); ok {
		return v
	}
	return ""
}

// CreateResult is the response to a work-item create.
type CreateResult struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

type patchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	From  interface{} `json:"from"`
	Value interface{} `json:"value"`
}

// AzureDevOpsClient talks to the work-item tracker REST API with basic
// auth (username may be empty, PAT is the password).
type AzureDevOpsClient struct {
	baseURL    string
	org        string
	project    string
	apiVersion string
	username   string
	pat        string
	httpClient *http.Client
	logger     arbor.ILogger
}

// AzureDevOpsOption configures the client.
type AzureDevOpsOption func(*AzureDevOpsClient)

// WithAzureDevOpsHTTPClient sets a custom HTTP client.
func WithAzureDevOpsHTTPClient(httpClient *http.Client) AzureDevOpsOption {
	return func(c *AzureDevOpsClient) {
		c.httpClient = httpClient
	}
}

// WithAzureDevOpsLogger sets a logger.
func WithAzureDevOpsLogger(logger arbor.ILogger) AzureDevOpsOption {
	return func(c *AzureDevOpsClient) {
		c.logger = logger
	}
}

// NewAzureDevOpsClient creates a work-item tracker client.
func NewAzureDevOpsClient(baseURL, org, project, apiVersion, username, pat string, opts ...AzureDevOpsOption) *AzureDevOpsClient {
	if baseURL == "" {
		baseURL = DefaultAzureDevOpsBaseURL
	}
	if apiVersion == "" {
		apiVersion = "7.0"
	}
	c := &AzureDevOpsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		org:        org,
		project:    project,
		apiVersion: apiVersion,
		username:   username,
		pat:        pat,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AzureDevOpsClient) authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.username+":"+c.pat))
}

func (c *AzureDevOpsClient) projectURL() string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.org), url.PathEscape(c.project))
}

func (c *AzureDevOpsClient) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", c.authHeader())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyTransport(models.ServiceAzureDevOps, err)
	}
	return resp, nil
}

// SearchWorkItemByIssueID runs a WIQL query matching work items whose
// Custom.IssueID equals issueID.
func (c *AzureDevOpsClient) SearchWorkItemByIssueID(ctx context.Context, issueID string) ([]WorkItemRef, error) {
	wiql := fmt.Sprintf(
		"SELECT [System.Id],[System.Title],[System.State],[System.AssignedTo] FROM workitems WHERE [System.WorkItemType] = 'Issue' AND [Custom.IssueID] = '%s'",
		strings.ReplaceAll(issueID, "'", "''"),
	)

	body, err := json.Marshal(map[string]string{"query": wiql})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal wiql query: %w", err)
	}

	reqURL := fmt.Sprintf("%s/_apis/wit/wiql?api-version=%s", c.projectURL(), c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if svcErr := ClassifyStatus(models.ServiceAzureDevOps, resp.StatusCode); svcErr != nil {
		return nil, svcErr
	}

	var result wiqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ServiceError{Service: models.ServiceAzureDevOps, Kind: KindMalformed, Message: "wiql response is not valid JSON", Err: err}
	}
	if result.WorkItems == nil {
		return nil, &ServiceError{Service: models.ServiceAzureDevOps, Kind: KindMalformed, Message: "wiql response is missing the workItems field"}
	}

	return result.WorkItems, nil
}

// GetWorkItemByURL fetches a work item using the tracker-supplied URL
// verbatim.
func (c *AzureDevOpsClient) GetWorkItemByURL(ctx context.Context, itemURL string) (*WorkItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, itemURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if svcErr := ClassifyStatus(models.ServiceAzureDevOps, resp.StatusCode); svcErr != nil {
		return nil, svcErr
	}

	var item WorkItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, &ServiceError{Service: models.ServiceAzureDevOps, Kind: KindMalformed, Message: "work item response is not valid JSON", Err: err}
	}

	return &item, nil
}

// AddWorkItem creates an Issue work item from a normalized issue via a
// JSON-Patch document, one add operation per mapped field.
func (c *AzureDevOpsClient) AddWorkItem(ctx context.Context, issue models.NormalizedIssue) (*CreateResult, error) {
	fields := []struct {
		key   string
		value string
	}{
		{"System.Title", issue.Title},
		{"System.Tags", issue.Tags},
		{"Custom.IssueID", issue.IssueID},
		{"Custom.IssueType", issue.Source.DisplayName()},
		{"Custom.SDK", issue.SDK},
		{"Custom.Repository", issue.Repository},
		{"Custom.IssueURL", issue.URL},
	}

	ops := make([]patchOp, 0, len(fields))
	for _, f := range fields {
		ops = append(ops, patchOp{
			Op:    "add",
			Path:  "/fields/" + f.key,
			From:  nil,
			Value: f.value,
		})
	}

	body, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch document: %w", err)
	}

	reqURL := fmt.Sprintf("%s/_apis/wit/workitems/$Issue?api-version=%s", c.projectURL(), c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json-patch+json")

	if c.logger != nil {
		c.logger.Info().
			Str("issue_id", issue.IssueID).
			Str("source", string(issue.Source)).
			Msg("Creating work item")
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if svcErr := ClassifyStatus(models.ServiceAzureDevOps, resp.StatusCode); svcErr != nil {
		return nil, svcErr
	}

	var result CreateResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ServiceError{Service: models.ServiceAzureDevOps, Kind: KindMalformed, Message: "create response is not valid JSON", Err: err}
	}

	return &result, nil
}

// Validate issues a minimal authenticated project listing with a bounded
// timeout and maps the outcome.
func (c *AzureDevOpsClient) Validate(ctx context.Context) error {
	if c.org == "" || c.project == "" {
		return &ServiceError{Service: models.ServiceAzureDevOps, Kind: KindConfiguration, Message: "organization and project must be configured"}
	}
	if c.pat == "" {
		return &ServiceError{Service: models.ServiceAzureDevOps, Kind: KindConfiguration, Message: "personal access token is not set"}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	reqURL := fmt.Sprintf("%s/%s/_apis/projects?$top=1&api-version=%s", c.baseURL, url.PathEscape(c.org), c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if svcErr := ClassifyStatus(models.ServiceAzureDevOps, resp.StatusCode); svcErr != nil {
		return svcErr
	}
	return nil
}
