package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("JIRA_SERVER", "https://example.atlassian.net/")
	t.Setenv("JIRA_EMAIL", "bot@example.com")
	t.Setenv("JIRA_API_TOKEN", "secret")
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	setCredentials(t)

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "https://example.atlassian.net", cfg.Jira.Server)
	assert.Equal(t, "bot@example.com", cfg.Jira.Email)
	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "HS256", cfg.JWT.Algorithm)
	assert.Equal(t, 30*time.Second, cfg.Tracker.Timeout)
	assert.Equal(t, []string{"Story", "Task", "Bug"}, cfg.Tracker.IssueTypes)
	assert.Equal(t, "cf[11357]", cfg.Fields.VisibilityJQL)
	assert.Equal(t, BackersAuto, cfg.Backers.Mode)
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("JIRA_SERVER", "")
	t.Setenv("JIRA_EMAIL", "")
	t.Setenv("JIRA_API_TOKEN", "")

	_, err := Load(newFlags(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JIRA_SERVER")
	assert.Contains(t, err.Error(), "JIRA_API_TOKEN")
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	setCredentials(t)
	t.Setenv("JIRADASH_TRACKER_ISSUE_TYPES", "Story, Epic")
	t.Setenv("JIRADASH_TRACKER_TIMEOUT", "5s")
	t.Setenv("JIRADASH_BACKERS_MODE", "List")
	t.Setenv("JIRADASH_CORS_ORIGINS", "http://localhost:3000,https://dash.example.com")

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"Story", "Epic"}, cfg.Tracker.IssueTypes)
	assert.Equal(t, 5*time.Second, cfg.Tracker.Timeout)
	assert.Equal(t, BackersList, cfg.Backers.Mode)
	assert.Equal(t, []string{"http://localhost:3000", "https://dash.example.com"}, cfg.CORSOrigins)
}

func TestLoadFlagsWinOverEnvironment(t *testing.T) {
	setCredentials(t)
	t.Setenv("JIRADASH_ADDR", ":9000")

	cfg, err := Load(newFlags(t, "--addr", ":7000", "--log-level", "debug"))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	setCredentials(t)
	path := filepath.Join(t.TempDir(), "jiradash.yaml")
	content := []byte(`
fields:
  backers: customfield_20000
tracker:
  issue_types:
    - Story
    - Spike
backers:
  mode: text
  dedupe_text: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(newFlags(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, "customfield_20000", cfg.Fields.Backers)
	assert.Equal(t, []string{"Story", "Spike"}, cfg.Tracker.IssueTypes)
	assert.Equal(t, BackersText, cfg.Backers.Mode)
	assert.True(t, cfg.Backers.DedupeText)
}

func TestLoadRejectsUnknownBackersMode(t *testing.T) {
	setCredentials(t)
	t.Setenv("JIRADASH_BACKERS_MODE", "csv")

	_, err := Load(newFlags(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backers mode")
}
