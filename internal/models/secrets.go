package models

// Secret keys form a closed set; the secrets API rejects anything else.
const (
	SecretGitHubToken    = "github-token"
	SecretDevOpsUsername = "devops-username"
	SecretDevOpsPAT      = "devops-pat"
	SecretInternalSOKey  = "internal-so-key"
	SecretTelemetryKey   = "telemetry-key"
)

// SecretKeys lists every key the secrets API accepts.
var SecretKeys = []string{
	SecretGitHubToken,
	SecretDevOpsUsername,
	SecretDevOpsPAT,
	SecretInternalSOKey,
	SecretTelemetryKey,
}

// IsSecretKey reports whether key belongs to the closed set.
func IsSecretKey(key string) bool {
	for _, k := range SecretKeys {
		if k == key {
			return true
		}
	}
	return false
}
