// -----------------------------------------------------------------------
// Client factory - builds per-run upstream clients from settings and
// stored credentials
// -----------------------------------------------------------------------

package jobs

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/reconcile"
	"github.com/ternarybob/colligo/internal/upstream"
)

// CredentialValidator is the tracker preflight surface.
type CredentialValidator interface {
	Validate(ctx context.Context) error
}

// RunClients bundles the upstream clients for one job run. Clients are
// rebuilt per run so credential changes take effect without a restart.
type RunClients struct {
	StackOverflow         reconcile.QuestionFetcher
	StackOverflowSiteURL  string
	InternalStackOverflow reconcile.QuestionFetcher
	InternalSiteURL       string
	GitHub                reconcile.IssueSearcher
	Tracker               reconcile.Tracker
	TrackerValidator      CredentialValidator
}

// SecretReader is the credential lookup the factory needs.
type SecretReader interface {
	Get(ctx context.Context, key string) (string, error)
}

// ClientFactory builds the clients for one run.
type ClientFactory interface {
	Build(ctx context.Context, settings models.Settings) (*RunClients, error)
}

// Factory is the production ClientFactory. When settings enable test-data
// mode it returns fixture-backed clients instead of live ones.
type Factory struct {
	config  *common.Config
	secrets SecretReader
	logger  arbor.ILogger
}

// NewFactory creates a client factory.
func NewFactory(config *common.Config, secrets SecretReader, logger arbor.ILogger) *Factory {
	return &Factory{
		config:  config,
		secrets: secrets,
		logger:  logger,
	}
}

// secret returns the stored value, or empty when absent. Presence is
// enforced per source by the scheduler, not here.
func (f *Factory) secret(ctx context.Context, key string) string {
	value, err := f.secrets.Get(ctx, key)
	if err != nil {
		return ""
	}
	return value
}

// Build assembles the per-run clients.
func (f *Factory) Build(ctx context.Context, settings models.Settings) (*RunClients, error) {
	if settings.UseTestData {
		f.logger.Info().Str("dir", f.config.TestData.Dir).Msg("Test-data mode, using fixture clients")
		return newFixtureClients(f.config.TestData.Dir, f.logger), nil
	}

	up := f.config.Upstreams

	tracker := upstream.NewAzureDevOpsClient(
		up.AzureDevOpsBaseURL,
		settings.AzureDevOps.Org,
		settings.AzureDevOps.Project,
		settings.AzureDevOps.APIVersion,
		f.secret(ctx, models.SecretDevOpsUsername),
		f.secret(ctx, models.SecretDevOpsPAT),
		upstream.WithAzureDevOpsLogger(f.logger),
	)

	return &RunClients{
		StackOverflow: upstream.NewStackOverflowClient(
			up.StackOverflowAPIURL,
			upstream.WithStackExchangeLogger(f.logger),
		),
		StackOverflowSiteURL: up.StackOverflowSiteURL,
		InternalStackOverflow: upstream.NewInternalStackOverflowClient(
			up.InternalSOAPIURL,
			f.secret(ctx, models.SecretInternalSOKey),
			upstream.WithStackExchangeLogger(f.logger),
		),
		InternalSiteURL: up.InternalSOSiteURL,
		GitHub: upstream.NewGitHubClient(
			up.GitHubGraphQLURL,
			f.config.Upstreams.GitHubOrg,
			f.secret(ctx, models.SecretGitHubToken),
			upstream.WithGitHubLogger(f.logger),
		),
		Tracker:          tracker,
		TrackerValidator: tracker,
	}, nil
}
