package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"jiradash/internal/config"
	"jiradash/internal/models"
)

// IssueTypeRef identifies an issue type either by id or by name. Clients may
// send a bare name or an object with an id and/or name; the id wins.
type IssueTypeRef struct {
	ID   string
	Name string
}

func (r *IssueTypeRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = IssueTypeRef{}
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = IssueTypeRef{Name: strings.TrimSpace(name)}
		return nil
	}

	var obj struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if data[0] != '{' || json.Unmarshal(data, &obj) != nil {
		return validationErrorf("issue_type must be a name or an object with an id or name")
	}
	id, ok := rawID(obj.ID)
	if !ok {
		return validationErrorf("issue_type id must be a string or a number")
	}
	*r = IssueTypeRef{ID: id, Name: strings.TrimSpace(obj.Name)}
	return nil
}

// rawID accepts a JSON string or integer id.
func rawID(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}

// IsZero reports whether neither an id nor a name was supplied.
func (r IssueTypeRef) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

func (r IssueTypeRef) payload() map[string]any {
	if r.ID != "" {
		return map[string]any{"id": r.ID}
	}
	return map[string]any{"name": r.Name}
}

// CreateTicketRequest is the body accepted by ticket creation. Only Summary
// and IssueType are required.
type CreateTicketRequest struct {
	Summary     string       `json:"summary"`
	Description *string      `json:"description"`
	IssueType   IssueTypeRef `json:"issue_type"`
	Priority    *string      `json:"priority"`
	Assignee    *string      `json:"assignee"`
	DueDate     *string      `json:"due_date"`
	StoryPoints *float64     `json:"story_points"`
	EpicLink    *string      `json:"epic_link"`
	Components  []string     `json:"components"`
	Labels      []string     `json:"labels"`
	Backer      BackerInput  `json:"backer"`
}

// Validate checks the request without contacting JIRA.
func (r CreateTicketRequest) Validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return validationErrorf("summary is required")
	}
	if r.IssueType.IsZero() {
		return validationErrorf("issue_type is required")
	}
	if due := present(r.DueDate); due != "" {
		if _, err := time.Parse("2006-01-02", due); err != nil {
			return validationErrorf("due_date must be formatted YYYY-MM-DD")
		}
	}
	return nil
}

// CreateTicket validates the request, discovers the visibility value and
// creates the issue in projectKey.
func (s *Service) CreateTicket(ctx context.Context, projectKey string, req CreateTicketRequest) (models.CreatedTicket, error) {
	if err := req.Validate(); err != nil {
		return models.CreatedTicket{}, err
	}

	visibility := s.discoverVisibility(ctx)
	fields := s.composeFields(projectKey, req, visibility)

	created, err := s.tracker.CreateIssue(ctx, fields)
	if err != nil {
		return models.CreatedTicket{}, err
	}

	s.record(ctx, models.Activity{
		Action:     models.ActionTicketCreated,
		IssueKey:   created.Key,
		ProjectKey: projectKey,
		Detail:     strings.TrimSpace(req.Summary),
	})
	return models.CreatedTicket{
		Key: created.Key,
		URL: s.tracker.BaseURL() + "/browse/" + created.Key,
	}, nil
}

// composeFields builds the JIRA field payload. Optional fields are omitted
// unless the request carries a non-empty value.
func (s *Service) composeFields(projectKey string, req CreateTicketRequest, visibility string) map[string]any {
	fields := map[string]any{
		"project":   map[string]any{"key": projectKey},
		"summary":   strings.TrimSpace(req.Summary),
		"issuetype": req.IssueType.payload(),
	}
	fields[s.cfg.Fields.Visibility] = map[string]any{"value": visibility}

	if v := present(req.Description); v != "" {
		fields["description"] = v
	}
	if v := present(req.Priority); v != "" {
		fields["priority"] = map[string]any{"name": v}
	}
	if v := present(req.Assignee); v != "" {
		fields["assignee"] = map[string]any{"accountId": v}
	}
	if v := present(req.DueDate); v != "" {
		fields["duedate"] = v
	}
	if req.StoryPoints != nil && s.cfg.Fields.StoryPoints != "" {
		fields[s.cfg.Fields.StoryPoints] = *req.StoryPoints
	}
	if v := present(req.EpicLink); v != "" && s.cfg.Fields.EpicLink != "" {
		fields[s.cfg.Fields.EpicLink] = v
	}
	if components := nonEmpty(req.Components); len(components) > 0 {
		refs := make([]map[string]any, 0, len(components))
		for _, name := range components {
			refs = append(refs, map[string]any{"name": name})
		}
		fields["components"] = refs
	}
	if labels := nonEmpty(req.Labels); len(labels) > 0 {
		fields["labels"] = labels
	}
	if backers := req.Backer.Entries(); len(backers) > 0 && s.cfg.Fields.Backers != "" {
		mode := config.BackersText
		if s.cfg.Backers.Mode == config.BackersList {
			mode = config.BackersList
			backers = mergeBackers(nil, backers, mode, false)
		}
		fields[s.cfg.Fields.Backers] = encodeBackers(backers, mode)
	}
	return fields
}

// discoverVisibility returns the first enabled option of the visibility
// field, or the configured fallback when discovery fails or finds nothing.
func (s *Service) discoverVisibility(ctx context.Context) string {
	fallback := s.cfg.Tracker.VisibilityFallback
	opts, err := s.activeOptions(ctx, s.cfg.Fields.Visibility)
	if err != nil {
		s.logger.Warn("visibility discovery failed, using fallback",
			slog.String("field", s.cfg.Fields.Visibility),
			slog.String("fallback", fallback),
			slog.String("error", err.Error()))
		return fallback
	}
	if len(opts) == 0 {
		s.logger.Warn("visibility field has no active options, using fallback",
			slog.String("field", s.cfg.Fields.Visibility),
			slog.String("fallback", fallback))
		return fallback
	}
	return opts[0].Value
}

func present(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
