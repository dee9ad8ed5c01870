// Package jql composes JIRA Query Language strings for dashboard listings.
package jql

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Filter describes a dashboard listing. ProjectKey and the visibility pair
// are always emitted; every other clause is optional.
type Filter struct {
	ProjectKey      string
	IssueTypes      []string
	VisibilityField string
	VisibilityValue string
	// Month restricts dueDate to one calendar month, formatted YYYY-MM.
	Month     string
	Search    string
	SortBy    string
	SortOrder string
}

// Build renders the filter as a single JQL query. Clauses are ANDed in a
// fixed order: project, issue types, visibility, due date range, summary
// search; followed by ORDER BY. Project key and sort terms are emitted
// verbatim and must be trusted values.
func Build(f Filter) string {
	clauses := []string{"project = " + f.ProjectKey}

	if len(f.IssueTypes) > 0 {
		quoted := make([]string, len(f.IssueTypes))
		for i, t := range f.IssueTypes {
			quoted[i] = quote(t)
		}
		clauses = append(clauses, fmt.Sprintf("issuetype in (%s)", strings.Join(quoted, ", ")))
	}

	clauses = append(clauses, fmt.Sprintf("%s = %s", f.VisibilityField, quote(f.VisibilityValue)))

	if f.Month != "" {
		if first, last, ok := MonthRange(f.Month); ok {
			clauses = append(clauses, fmt.Sprintf("dueDate >= %s AND dueDate <= %s", quote(first), quote(last)))
		}
	}

	if f.Search != "" {
		clauses = append(clauses, "summary ~ "+quote(f.Search))
	}

	sortBy, sortOrder := f.SortBy, f.SortOrder
	if sortBy == "" {
		sortBy = "key"
	}
	if sortOrder == "" {
		sortOrder = "asc"
	}
	return strings.Join(clauses, " AND ") + fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)
}

// ProjectOnly selects every issue of a project.
func ProjectOnly(projectKey string) string {
	return "project = " + projectKey
}

// MonthRange returns the first and last calendar day of a YYYY-MM month.
// ok is false when month is not two integers separated by a dash or does not
// name a real month.
func MonthRange(month string) (first, last string, ok bool) {
	parts := strings.Split(month, "-")
	if len(parts) != 2 {
		return "", "", false
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", "", false
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", "", false
	}
	if year < 1 || year > 9999 || m < 1 || m > 12 {
		return "", "", false
	}

	start := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the next month is the last day of this one.
	end := time.Date(year, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC)
	return start.Format(dateLayout), end.Format(dateLayout), true
}

// Escape makes s safe to embed inside a double quoted JQL string.
func Escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func quote(s string) string {
	return `"` + Escape(s) + `"`
}
