// -----------------------------------------------------------------------
// Stack Exchange client - public Stack Overflow and the internal Teams
// instance share one implementation
// -----------------------------------------------------------------------

package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultStackExchangeAPIURL is the public Stack Exchange API root.
	DefaultStackExchangeAPIURL = "https://api.stackexchange.com/2.3"

	// throttleBackoff is how long a 429 response parks the client before
	// the tag is treated as empty. A single fixed back-off, no retry loop.
	throttleBackoff = 5100 * time.Millisecond
)

// Question is one item from the /questions response.
type Question struct {
	QuestionID   int64    `json:"question_id"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Link         string   `json:"link"`
	Tags         []string `json:"tags"`
	CreationDate int64    `json:"creation_date"`
}

type questionsResponse struct {
	Items []Question `json:"items"`
}

// StackExchangeClient fetches questions by tag from one Stack Exchange
// instance. The public instance sends the site parameter; the internal
// Teams instance authenticates with an X-API-Key header instead.
type StackExchangeClient struct {
	service    string
	apiURL     string
	site       string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    time.Duration
	logger     arbor.ILogger
}

// StackExchangeOption configures the client.
type StackExchangeOption func(*StackExchangeClient)

// WithStackExchangeHTTPClient sets a custom HTTP client.
func WithStackExchangeHTTPClient(httpClient *http.Client) StackExchangeOption {
	return func(c *StackExchangeClient) {
		c.httpClient = httpClient
	}
}

// WithStackExchangeLogger sets a logger.
func WithStackExchangeLogger(logger arbor.ILogger) StackExchangeOption {
	return func(c *StackExchangeClient) {
		c.logger = logger
	}
}

// WithStackExchangePacing sets the minimum interval between tag fetches.
func WithStackExchangePacing(interval time.Duration) StackExchangeOption {
	return func(c *StackExchangeClient) {
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithThrottleBackoff overrides the 429 back-off duration.
func WithThrottleBackoff(d time.Duration) StackExchangeOption {
	return func(c *StackExchangeClient) {
		c.backoff = d
	}
}

// NewStackOverflowClient creates a client for the public instance. No key
// is required; the site parameter selects stackoverflow.
func NewStackOverflowClient(apiURL string, opts ...StackExchangeOption) *StackExchangeClient {
	if apiURL == "" {
		apiURL = DefaultStackExchangeAPIURL
	}
	c := &StackExchangeClient{
		service:    "Stack Overflow",
		apiURL:     apiURL,
		site:       "stackoverflow",
		userAgent:  "colligo-stackoverflow-query",
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Every(1500*time.Millisecond), 1),
		backoff:    throttleBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewInternalStackOverflowClient creates a client for the internal Teams
// instance, authenticated via X-API-Key.
func NewInternalStackOverflowClient(apiURL, apiKey string, opts ...StackExchangeOption) *StackExchangeClient {
	c := &StackExchangeClient{
		service:    "Internal Stack Overflow",
		apiURL:     apiURL,
		apiKey:     apiKey,
		userAgent:  "colligo-internal-stackoverflow-query",
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Every(1000*time.Millisecond), 1),
		backoff:    throttleBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service returns the attribution label for this instance.
func (c *StackExchangeClient) Service() string {
	return c.service
}

// FetchQuestions returns all questions tagged with tag created at or after
// fromUnix. A 429 parks the client for the fixed back-off and yields an
// empty result for the tag; every other failure is returned classified.
func (c *StackExchangeClient) FetchQuestions(ctx context.Context, tag string, fromUnix int64) ([]Question, error) {
	// Politeness pacing between tag fetches; doubles as a cancellation
	// checkpoint since Wait respects the context.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, ClassifyTransport(c.service, err)
	}

	params := url.Values{}
	params.Set("fromdate", fmt.Sprintf("%d", fromUnix))
	params.Set("filter", "withbody")
	params.Set("tagged", tag)
	if c.site != "" {
		params.Set("site", c.site)
	}

	reqURL := fmt.Sprintf("%s/questions?%s", c.apiURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("service", c.service).
			Str("tag", tag).
			Int64("fromdate", fromUnix).
			Msg("Fetching questions")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyTransport(c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if c.logger != nil {
			c.logger.Warn().
				Str("service", c.service).
				Str("tag", tag).
				Dur("backoff", c.backoff).
				Msg("Throttled by upstream, backing off")
		}
		select {
		case <-ctx.Done():
			return nil, ClassifyTransport(c.service, ctx.Err())
		case <-time.After(c.backoff):
		}
		// The tag yields an empty list for this run; no retry.
		return []Question{}, nil
	}

	if svcErr := ClassifyStatus(c.service, resp.StatusCode); svcErr != nil {
		return nil, svcErr
	}

	var result questionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ServiceError{Service: c.service, Kind: KindMalformed, Message: "response body is not valid JSON", Err: err}
	}
	if result.Items == nil {
		return nil, &ServiceError{Service: c.service, Kind: KindMalformed, Message: "response is missing the items field"}
	}

	return result.Items, nil
}

// Validate issues a minimal authenticated request and maps the outcome per
// the shared status classification. Only meaningful for the internal
// instance; the public API needs no credentials.
func (c *StackExchangeClient) Validate(ctx context.Context) error {
	params := url.Values{}
	params.Set("pagesize", "1")
	if c.site != "" {
		params.Set("site", c.site)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/questions?%s", c.apiURL, params.Encode()), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ClassifyTransport(c.service, err)
	}
	defer resp.Body.Close()

	if svcErr := ClassifyStatus(c.service, resp.StatusCode); svcErr != nil {
		return svcErr
	}
	return nil
}
