// -----------------------------------------------------------------------
// GitHub client - GraphQL issue search plus REST credential validation
// -----------------------------------------------------------------------

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v57/github"
	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultGitHubGraphQLURL is the GitHub GraphQL endpoint.
const DefaultGitHubGraphQLURL = "https://api.github.com/graphql"

// GitHubIssue is one open issue returned by the search query.
type GitHubIssue struct {
	Number      int
	Title       string
	URL         string
	CreatedAt   time.Time
	Repository  string
	Labels      []string
	LabelEvents []LabelEvent
}

// LabelEvent records when a label was applied to an issue. The search
// query's created: qualifier is inclusive at day granularity; the per-event
// timestamps restore precision for labels applied after creation.
type LabelEvent struct {
	Label     string
	CreatedAt time.Time
}

// GitHubClient searches open issues per repository via GraphQL. A single
// query per (repo, label) with last: 100; no pagination.
type GitHubClient struct {
	endpoint   string
	token      string
	org        string
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    time.Duration
	logger     arbor.ILogger
}

// GitHubOption configures the client.
type GitHubOption func(*GitHubClient)

// WithGitHubHTTPClient sets a custom HTTP client.
func WithGitHubHTTPClient(httpClient *http.Client) GitHubOption {
	return func(c *GitHubClient) {
		c.httpClient = httpClient
	}
}

// WithGitHubLogger sets a logger.
func WithGitHubLogger(logger arbor.ILogger) GitHubOption {
	return func(c *GitHubClient) {
		c.logger = logger
	}
}

// WithGitHubPacing sets the minimum interval between repo fetches.
func WithGitHubPacing(interval time.Duration) GitHubOption {
	return func(c *GitHubClient) {
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithGitHubThrottleBackoff overrides the 429 back-off duration.
func WithGitHubThrottleBackoff(d time.Duration) GitHubOption {
	return func(c *GitHubClient) {
		c.backoff = d
	}
}

// NewGitHubClient creates a GitHub issue search client for one org.
func NewGitHubClient(endpoint, org, token string, opts ...GitHubOption) *GitHubClient {
	if endpoint == "" {
		endpoint = DefaultGitHubGraphQLURL
	}
	c := &GitHubClient{
		endpoint:   endpoint,
		token:      token,
		org:        org,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Every(300*time.Millisecond), 1),
		backoff:    throttleBackoff,
		logger:     nil,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type graphqlRequest struct {
	Query string `json:"query"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type searchResponse struct {
	Search struct {
		Nodes []struct {
			Number     int       `json:"number"`
			Title      string    `json:"title"`
			URL        string    `json:"url"`
			CreatedAt  time.Time `json:"createdAt"`
			Repository struct {
				Name string `json:"name"`
			} `json:"repository"`
			Labels struct {
				Nodes []struct {
					Name string `json:"name"`
				} `json:"nodes"`
			} `json:"labels"`
			TimelineItems struct {
				Nodes []struct {
					CreatedAt time.Time `json:"createdAt"`
					Label     struct {
						Name string `json:"name"`
					} `json:"label"`
				} `json:"nodes"`
			} `json:"timelineItems"`
		} `json:"nodes"`
	} `json:"search"`
}

// buildSearchQuery constructs the issue search for one repo. label and
// excludeLabels are optional qualifiers.
func buildSearchQuery(org, repo, label, createdAfter string, excludeLabels []string) string {
	var search strings.Builder
	fmt.Fprintf(&search, "repo:%s/%s is:open is:issue", org, repo)
	if label != "" {
		fmt.Fprintf(&search, " label:\\\"%s\\\"", label)
	}
	fmt.Fprintf(&search, " created:>%s", createdAfter)
	for _, x := range excludeLabels {
		fmt.Fprintf(&search, " -label:\\\"%s\\\"", x)
	}

	var builder strings.Builder
	builder.WriteString("query {\n")
	fmt.Fprintf(&builder, "  search(query: \"%s\", type: ISSUE, last: 100) {\n", search.String())
	builder.WriteString("    nodes {\n")
	builder.WriteString("      ... on Issue {\n")
	builder.WriteString("        number\n")
	builder.WriteString("        title\n")
	builder.WriteString("        url\n")
	builder.WriteString("        createdAt\n")
	builder.WriteString("        repository { name }\n")
	builder.WriteString("        labels(first: 100) { nodes { name } }\n")
	builder.WriteString("        timelineItems(itemTypes: LABELED_EVENT, first: 100) {\n")
	builder.WriteString("          nodes {\n")
	builder.WriteString("            ... on LabeledEvent { createdAt label { name } }\n")
	builder.WriteString("          }\n")
	builder.WriteString("        }\n")
	builder.WriteString("      }\n")
	builder.WriteString("    }\n")
	builder.WriteString("  }\n")
	builder.WriteString("}\n")

	return builder.String()
}

// SearchIssues returns open issues in org/repo created after createdAfter
// (ISO-8601), optionally filtered to one label and excluding others. A 429
// parks the client for the fixed back-off and yields an empty result for
// the repo.
func (c *GitHubClient) SearchIssues(ctx context.Context, repo, label, createdAfter string, excludeLabels []string) ([]GitHubIssue, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, ClassifyTransport("GitHub", err)
	}

	query := buildSearchQuery(c.org, repo, label, createdAfter, excludeLabels)

	jsonBody, err := json.Marshal(graphqlRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	if c.logger != nil {
		c.logger.Debug().
			Str("repo", repo).
			Str("label", label).
			Str("created_after", createdAfter).
			Msg("Searching GitHub issues")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyTransport("GitHub", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if c.logger != nil {
			c.logger.Warn().Str("repo", repo).Dur("backoff", c.backoff).Msg("Throttled by GitHub, backing off")
		}
		select {
		case <-ctx.Done():
			return nil, ClassifyTransport("GitHub", ctx.Err())
		case <-time.After(c.backoff):
		}
		return []GitHubIssue{}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ClassifyTransport("GitHub", err)
	}

	if svcErr := ClassifyStatus("GitHub", resp.StatusCode); svcErr != nil {
		return nil, svcErr
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, &ServiceError{Service: "GitHub", Kind: KindMalformed, Message: "response body is not valid JSON", Err: err}
	}
	if len(gqlResp.Errors) > 0 {
		var msgs []string
		for _, e := range gqlResp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &ServiceError{Service: "GitHub", Kind: KindServer, Message: "graphql errors: " + strings.Join(msgs, "; ")}
	}

	var search searchResponse
	if err := json.Unmarshal(gqlResp.Data, &search); err != nil {
		return nil, &ServiceError{Service: "GitHub", Kind: KindMalformed, Message: "search payload does not match the expected shape", Err: err}
	}

	issues := make([]GitHubIssue, 0, len(search.Search.Nodes))
	for _, node := range search.Search.Nodes {
		issue := GitHubIssue{
			Number:     node.Number,
			Title:      node.Title,
			URL:        node.URL,
			CreatedAt:  node.CreatedAt,
			Repository: node.Repository.Name,
		}
		for _, l := range node.Labels.Nodes {
			issue.Labels = append(issue.Labels, l.Name)
		}
		for _, ev := range node.TimelineItems.Nodes {
			issue.LabelEvents = append(issue.LabelEvents, LabelEvent{Label: ev.Label.Name, CreatedAt: ev.CreatedAt})
		}
		issues = append(issues, issue)
	}

	return issues, nil
}

// Validate checks the token with a minimal authenticated REST call.
func (c *GitHubClient) Validate(ctx context.Context) error {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token})
	client := gogithub.NewClient(oauth2.NewClient(ctx, ts))

	_, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		if resp != nil {
			if svcErr := ClassifyStatus("GitHub", resp.StatusCode); svcErr != nil {
				return svcErr
			}
		}
		return ClassifyTransport("GitHub", err)
	}
	return nil
}
