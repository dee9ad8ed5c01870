// Package config loads jiradash settings from flags, environment variables
// and an optional YAML file.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Backers field representations.
const (
	BackersAuto = "auto"
	BackersText = "text"
	BackersList = "list"
)

// Config is built once at startup and shared read-only with every component.
type Config struct {
	Addr        string
	StaticDir   string
	DBPath      string
	LogLevel    slog.Level
	CORSOrigins []string

	Jira    Jira
	JWT     JWT
	Tracker Tracker
	Fields  Fields
	Backers Backers
}

// Jira holds the upstream server and its basic auth credentials.
type Jira struct {
	Server   string
	Email    string
	APIToken string
}

// JWT parameters are loaded for compatibility with existing deployments;
// no endpoint signs or verifies tokens.
type JWT struct {
	SecretKey string
	Algorithm string
}

// Tracker tunes how the upstream API is queried.
type Tracker struct {
	Timeout            time.Duration
	SubtaskConcurrency int
	IssueTypes         []string
	VisibilityFallback string
}

// Fields maps dashboard concepts onto JIRA custom field ids.
type Fields struct {
	Visibility    string
	VisibilityJQL string
	StartDate     string
	StoryPoints   string
	EpicLink      string
	Backers       string
}

// Backers controls how the backers field is merged and written.
type Backers struct {
	Mode       string
	DedupeText bool
}

// Defaults returns a configuration with every optional setting populated.
// Credentials are left empty.
func Defaults() Config {
	return Config{
		Addr:        ":5000",
		LogLevel:    slog.LevelInfo,
		CORSOrigins: []string{"*"},
		JWT:         JWT{Algorithm: "HS256"},
		Tracker: Tracker{
			Timeout:            30 * time.Second,
			SubtaskConcurrency: 4,
			IssueTypes:         []string{"Story", "Task", "Bug"},
			VisibilityFallback: "Organisation",
		},
		Fields: Fields{
			Visibility:    "customfield_11357",
			VisibilityJQL: "cf[11357]",
			StartDate:     "customfield_10015",
			StoryPoints:   "customfield_10016",
			EpicLink:      "customfield_10014",
			Backers:       "customfield_10100",
		},
		Backers: Backers{Mode: BackersAuto},
	}
}

// RegisterFlags adds the command line flags understood by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Defaults()
	fs.String("config", "", "Optional YAML config file")
	fs.String("addr", def.Addr, "HTTP listen address")
	fs.String("static", "", "Directory with built frontend")
	fs.String("db", "", "Path to sqlite activity journal (empty disables it)")
	fs.String("log-level", def.LogLevel.String(), "Log level (debug, info, warn, error)")
}

// Load resolves configuration from flags, environment, an optional config
// file and defaults, in that order of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JIRADASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Upstream credentials keep their historical unprefixed names.
	_ = v.BindEnv("jira.server", "JIRA_SERVER")
	_ = v.BindEnv("jira.email", "JIRA_EMAIL")
	_ = v.BindEnv("jira.api_token", "JIRA_API_TOKEN")
	_ = v.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	_ = v.BindEnv("jwt.algorithm", "JWT_ALGORITHM")

	if fs != nil {
		bindFlag(v, fs, "addr", "addr")
		bindFlag(v, fs, "static_dir", "static")
		bindFlag(v, fs, "db_path", "db")
		bindFlag(v, fs, "log_level", "log-level")
		bindFlag(v, fs, "config", "config")
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Addr:        v.GetString("addr"),
		StaticDir:   v.GetString("static_dir"),
		DBPath:      v.GetString("db_path"),
		CORSOrigins: stringList(v, "cors_origins"),
		Jira: Jira{
			Server:   v.GetString("jira.server"),
			Email:    v.GetString("jira.email"),
			APIToken: v.GetString("jira.api_token"),
		},
		JWT: JWT{
			SecretKey: v.GetString("jwt.secret_key"),
			Algorithm: v.GetString("jwt.algorithm"),
		},
		Tracker: Tracker{
			Timeout:            v.GetDuration("tracker.timeout"),
			SubtaskConcurrency: v.GetInt("tracker.subtask_concurrency"),
			IssueTypes:         stringList(v, "tracker.issue_types"),
			VisibilityFallback: v.GetString("tracker.visibility_fallback"),
		},
		Fields: Fields{
			Visibility:    v.GetString("fields.visibility"),
			VisibilityJQL: v.GetString("fields.visibility_jql"),
			StartDate:     v.GetString("fields.start_date"),
			StoryPoints:   v.GetString("fields.story_points"),
			EpicLink:      v.GetString("fields.epic_link"),
			Backers:       v.GetString("fields.backers"),
		},
		Backers: Backers{
			Mode:       strings.ToLower(strings.TrimSpace(v.GetString("backers.mode"))),
			DedupeText: v.GetBool("backers.dedupe_text"),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.Jira.Server = strings.TrimRight(strings.TrimSpace(c.Jira.Server), "/")

	var missing []string
	if c.Jira.Server == "" {
		missing = append(missing, "JIRA_SERVER")
	}
	if c.Jira.Email == "" {
		missing = append(missing, "JIRA_EMAIL")
	}
	if c.Jira.APIToken == "" {
		missing = append(missing, "JIRA_API_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	switch c.Backers.Mode {
	case BackersAuto, BackersText, BackersList:
	default:
		return fmt.Errorf("invalid backers mode %q", c.Backers.Mode)
	}
	if c.Tracker.SubtaskConcurrency < 1 {
		c.Tracker.SubtaskConcurrency = 1
	}
	if c.Tracker.Timeout <= 0 {
		return fmt.Errorf("tracker timeout must be positive")
	}
	if c.Fields.Visibility == "" || c.Fields.VisibilityJQL == "" {
		return fmt.Errorf("visibility field must be configured")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	def := Defaults()
	v.SetDefault("addr", def.Addr)
	v.SetDefault("static_dir", "")
	v.SetDefault("db_path", "")
	v.SetDefault("log_level", def.LogLevel.String())
	v.SetDefault("cors_origins", strings.Join(def.CORSOrigins, ","))
	v.SetDefault("jwt.algorithm", def.JWT.Algorithm)
	v.SetDefault("tracker.timeout", def.Tracker.Timeout.String())
	v.SetDefault("tracker.subtask_concurrency", def.Tracker.SubtaskConcurrency)
	v.SetDefault("tracker.issue_types", strings.Join(def.Tracker.IssueTypes, ","))
	v.SetDefault("tracker.visibility_fallback", def.Tracker.VisibilityFallback)
	v.SetDefault("fields.visibility", def.Fields.Visibility)
	v.SetDefault("fields.visibility_jql", def.Fields.VisibilityJQL)
	v.SetDefault("fields.start_date", def.Fields.StartDate)
	v.SetDefault("fields.story_points", def.Fields.StoryPoints)
	v.SetDefault("fields.epic_link", def.Fields.EpicLink)
	v.SetDefault("fields.backers", def.Fields.Backers)
	v.SetDefault("backers.mode", def.Backers.Mode)
	v.SetDefault("backers.dedupe_text", def.Backers.DedupeText)
}

func bindFlag(v *viper.Viper, fs *pflag.FlagSet, key, name string) {
	if f := fs.Lookup(name); f != nil {
		_ = v.BindPFlag(key, f)
	}
}

// stringList accepts either a comma separated string (env, flags) or a YAML list.
func stringList(v *viper.Viper, key string) []string {
	var raw []string
	switch val := v.Get(key).(type) {
	case string:
		raw = strings.Split(val, ",")
	default:
		raw = v.GetStringSlice(key)
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
