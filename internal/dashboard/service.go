// Package dashboard reshapes JIRA data into the dashboard's JSON contracts
// and implements ticket creation and backers editing on top of it.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jiradash/internal/config"
	"jiradash/internal/models"
	"jiradash/internal/tracker"
)

// ErrValidation marks client input problems detected before JIRA is called.
var ErrValidation = errors.New("invalid request")

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Tracker is the JIRA surface the dashboard depends on.
type Tracker interface {
	BaseURL() string
	Myself(ctx context.Context) (tracker.User, error)
	Project(ctx context.Context, key string) (tracker.Project, error)
	Search(ctx context.Context, opts tracker.SearchOptions) (tracker.SearchResult, error)
	Issue(ctx context.Context, key string) (tracker.Issue, error)
	CreateIssue(ctx context.Context, fields map[string]any) (tracker.CreatedIssue, error)
	UpdateIssue(ctx context.Context, key string, body map[string]any) error
	Fields(ctx context.Context) ([]tracker.Field, error)
	FieldContexts(ctx context.Context, fieldID string) ([]tracker.FieldContext, error)
	FieldOptions(ctx context.Context, fieldID, contextID string) ([]tracker.FieldOption, error)
}

// Journal records writes made through the service. A nil Journal disables recording.
type Journal interface {
	Record(ctx context.Context, a models.Activity) (models.Activity, error)
}

// Service implements every dashboard operation.
type Service struct {
	tracker Tracker
	journal Journal
	cfg     *config.Config
	logger  *slog.Logger
}

// New wires a service. journal may be nil.
func New(t Tracker, journal Journal, cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tracker: t, journal: journal, cfg: cfg, logger: logger}
}

// Authenticate confirms the configured credentials are accepted.
func (s *Service) Authenticate(ctx context.Context) (models.AuthStatus, error) {
	me, err := s.tracker.Myself(ctx)
	if err != nil {
		return models.AuthStatus{}, err
	}
	return models.AuthStatus{
		Authenticated: true,
		User: models.User{
			Name:  valueOr(me.DisplayName, "Unknown"),
			Email: valueOr(me.EmailAddress, "Unknown"),
		},
	}, nil
}

// ValidateProject looks up a project by key.
func (s *Service) ValidateProject(ctx context.Context, key string) (models.Project, error) {
	p, err := s.tracker.Project(ctx, key)
	if err != nil {
		return models.Project{}, err
	}
	out := models.Project{Exists: true, ID: p.ID, Key: p.Key, Name: p.Name}
	if p.ProjectCategory != nil {
		out.ProjectCategory = &p.ProjectCategory.Name
	}
	return out, nil
}

// IssueTypes lists the issue types available in a project.
func (s *Service) IssueTypes(ctx context.Context, projectKey string) ([]models.IssueType, error) {
	p, err := s.tracker.Project(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	types := make([]models.IssueType, 0, len(p.IssueTypes))
	for _, t := range p.IssueTypes {
		types = append(types, models.IssueType{ID: t.ID, Name: t.Name, Description: t.Description})
	}
	return types, nil
}

func (s *Service) record(ctx context.Context, a models.Activity) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.Record(ctx, a); err != nil {
		s.logger.Warn("journal write failed",
			slog.String("action", a.Action),
			slog.String("issue", a.IssueKey),
			slog.String("error", err.Error()))
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
