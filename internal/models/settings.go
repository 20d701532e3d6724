package models

// Settings is the runtime settings document persisted in the store and
// served by GET /api/settings. PATCH applies partial updates; the job
// scheduler reads it once at job start to avoid read-modify-write races
// with concurrent PATCH requests.
type Settings struct {
	AzureDevOps     AzureDevOpsSettings `json:"azureDevOps"`
	GitHub          GitHubSettings      `json:"github"`
	UseTestData     bool                `json:"useTestData"`
	IsVerbose       bool                `json:"isVerbose"`
	EnabledServices EnabledServices     `json:"enabledServices"`
	QueryDefaults   QueryParams         `json:"queryDefaults"`
	PushToDevOps    bool                `json:"pushToDevOps"`
	Repositories    RepositorySettings  `json:"repositories"`
	Timestamp       TimestampSettings   `json:"timestamp"`
	Theme           string              `json:"theme"`
}

// AzureDevOpsSettings locate the work-item tracker project.
type AzureDevOpsSettings struct {
	Org        string `json:"org"`
	Project    string `json:"project"`
	APIVersion string `json:"apiVersion"`
}

// GitHubSettings configure the SCM issues upstream.
type GitHubSettings struct {
	APIURL string `json:"apiUrl"`
}

// RepositorySettings list the units each source polls: GitHub repository
// short-names and the Stack Overflow tags for each instance.
type RepositorySettings struct {
	GitHub                []string `json:"github"`
	StackOverflow         []string `json:"stackOverflow"`
	InternalStackOverflow []string `json:"internalStackOverflow"`
}

// TimestampSettings record when queries last ran. LastRun rotates into
// PreviousRun at the start of every run; the GitHub label-event filter
// compares against PreviousRun.
type TimestampSettings struct {
	LastRun     string `json:"lastRun"`
	PreviousRun string `json:"previousRun"`
}

// DefaultSettings is the document written on first start.
func DefaultSettings() Settings {
	return Settings{
		AzureDevOps: AzureDevOpsSettings{
			APIVersion: "7.0",
		},
		GitHub: GitHubSettings{
			APIURL: "https://api.github.com",
		},
		EnabledServices: DefaultEnabledServices(),
		QueryDefaults:   DefaultQueryParams(),
		PushToDevOps:    true,
		Repositories: RepositorySettings{
			GitHub:                []string{},
			StackOverflow:         []string{},
			InternalStackOverflow: []string{},
		},
		Theme: "light",
	}
}
