package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration. Only deployment-level
// knobs live here; user-facing runtime settings are a document in the
// store (served by /api/settings).
type Config struct {
	Environment string             `toml:"environment"` // "development" or "production"
	Server      ServerConfig       `toml:"server"`
	Storage     StorageConfig      `toml:"storage"`
	Logging     LoggingConfig      `toml:"logging"`
	Upstreams   UpstreamConfig     `toml:"upstreams"`
	TestData    TestDataConfig     `toml:"test_data"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// UpstreamConfig holds transport-level endpoints for the three issue
// sources and the tracker. Org/project/tags live in the settings document.
type UpstreamConfig struct {
	StackOverflowAPIURL  string        `toml:"stackoverflow_api_url"`
	StackOverflowSiteURL string        `toml:"stackoverflow_site_url"`
	InternalSOAPIURL     string        `toml:"internal_so_api_url"`
	InternalSOSiteURL    string        `toml:"internal_so_site_url"`
	GitHubGraphQLURL     string        `toml:"github_graphql_url"`
	AzureDevOpsBaseURL   string        `toml:"azure_devops_base_url"`
	ValidationTimeout    time.Duration `toml:"validation_timeout"`
	GitHubOrg            string        `toml:"github_org"`
}

// TestDataConfig points at the fixture files served in test-data mode.
type TestDataConfig struct {
	Dir string `toml:"dir"` // Directory containing fixture JSON files
}

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8710,
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Upstreams: UpstreamConfig{
			StackOverflowAPIURL:  "https://api.stackexchange.com/2.3",
			StackOverflowSiteURL: "https://stackoverflow.com",
			InternalSOAPIURL:     "",
			InternalSOSiteURL:    "",
			GitHubGraphQLURL:     "https://api.github.com/graphql",
			AzureDevOpsBaseURL:   "https://dev.azure.com",
			ValidationTimeout:    10 * time.Second,
			GitHubOrg:            "",
		},
		TestData: TestDataConfig{
			Dir: "./testdata",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier
// files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COLLIGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("COLLIGO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("COLLIGO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("COLLIGO_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
