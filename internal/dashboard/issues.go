package dashboard

import (
	"context"
	"log/slog"
	"sort"

	"jiradash/internal/jql"
	"jiradash/internal/models"
	"jiradash/internal/tracker"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	// Statuses are collected from at most this many issues.
	statusScanLimit = 1000
	statusPageSize  = 100
)

// ListQuery carries the listing parameters accepted from clients.
type ListQuery struct {
	Page      int
	Size      int
	SortBy    string
	SortOrder string
	Month     string
	Search    string
	// IssueTypes overrides the configured default issue types when set.
	IssueTypes []string
}

// ListIssues returns one page of a project's issues matching the query.
func (s *Service) ListIssues(ctx context.Context, projectKey string, q ListQuery) (models.IssuePage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.Size
	switch {
	case size < 1:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}

	types := q.IssueTypes
	if len(types) == 0 {
		types = s.cfg.Tracker.IssueTypes
	}

	if q.Month != "" {
		if _, _, ok := jql.MonthRange(q.Month); !ok {
			s.logger.Debug("ignoring invalid month filter", slog.String("month", q.Month))
		}
	}

	query := jql.Build(jql.Filter{
		ProjectKey:      projectKey,
		IssueTypes:      types,
		VisibilityField: s.cfg.Fields.VisibilityJQL,
		VisibilityValue: s.cfg.Tracker.VisibilityFallback,
		Month:           q.Month,
		Search:          q.Search,
		SortBy:          q.SortBy,
		SortOrder:       q.SortOrder,
	})

	res, err := s.tracker.Search(ctx, tracker.SearchOptions{
		JQL:        query,
		StartAt:    (page - 1) * size,
		MaxResults: size,
		Fields:     s.listFields(),
	})
	if err != nil {
		return models.IssuePage{}, err
	}

	items := make([]models.IssueItem, 0, len(res.Issues))
	for _, issue := range res.Issues {
		items = append(items, s.toItem(issue))
	}
	return models.IssuePage{Items: items, Total: res.Total, Page: page, Size: size}, nil
}

// Statuses returns the sorted distinct status names used in a project.
func (s *Service) Statuses(ctx context.Context, projectKey string) ([]string, error) {
	seen := make(map[string]struct{})
	scanned := 0
	for scanned < statusScanLimit {
		res, err := s.tracker.Search(ctx, tracker.SearchOptions{
			JQL:        jql.ProjectOnly(projectKey),
			StartAt:    scanned,
			MaxResults: min(statusPageSize, statusScanLimit-scanned),
			Fields:     []string{"status"},
		})
		if err != nil {
			return nil, err
		}
		for _, issue := range res.Issues {
			if name := refName(issue.Fields.Status); name != "" {
				seen[name] = struct{}{}
			}
		}
		scanned += len(res.Issues)
		if len(res.Issues) == 0 || scanned >= res.Total {
			break
		}
	}

	statuses := make([]string, 0, len(seen))
	for name := range seen {
		statuses = append(statuses, name)
	}
	sort.Strings(statuses)
	return statuses, nil
}

func (s *Service) listFields() []string {
	fields := []string{"summary", "description", "assignee", "reporter", "issuetype", "status", "priority", "duedate"}
	if s.cfg.Fields.StartDate != "" {
		fields = append(fields, s.cfg.Fields.StartDate)
	}
	return fields
}

func (s *Service) toItem(issue tracker.Issue) models.IssueItem {
	f := issue.Fields
	return models.IssueItem{
		Key:         issue.Key,
		Title:       f.Summary,
		Description: f.Description,
		Assignee:    displayName(f.Assignee),
		Reporter:    displayName(f.Reporter),
		IssueType:   typeName(f.IssueType),
		Status:      refName(f.Status),
		Priority:    optionalRef(f.Priority),
		StartDate:   s.startDate(f),
		DueDate:     f.DueDate,
	}
}

func (s *Service) startDate(f tracker.IssueFields) *string {
	if s.cfg.Fields.StartDate == "" {
		return nil
	}
	return f.CustomString(s.cfg.Fields.StartDate)
}

func displayName(u *tracker.User) *string {
	if u == nil || u.DisplayName == "" {
		return nil
	}
	name := u.DisplayName
	return &name
}

func refName(r *tracker.NamedRef) string {
	if r == nil {
		return ""
	}
	return r.Name
}

func optionalRef(r *tracker.NamedRef) *string {
	if r == nil || r.Name == "" {
		return nil
	}
	name := r.Name
	return &name
}

func typeName(t *tracker.IssueType) string {
	if t == nil {
		return ""
	}
	return t.Name
}
