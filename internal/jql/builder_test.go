package jql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseFilter() Filter {
	return Filter{
		ProjectKey:      "P",
		IssueTypes:      []string{"Story", "Task", "Bug"},
		VisibilityField: "cf[11357]",
		VisibilityValue: "Organisation",
	}
}

func TestBuild_ClauseOrder(t *testing.T) {
	t.Parallel()
	f := baseFilter()
	f.Month = "2024-03"
	f.Search = "login"
	f.SortBy = "duedate"
	f.SortOrder = "desc"

	want := `project = P AND issuetype in ("Story", "Task", "Bug") AND cf[11357] = "Organisation"` +
		` AND dueDate >= "2024-03-01" AND dueDate <= "2024-03-31"` +
		` AND summary ~ "login" ORDER BY duedate desc`
	assert.Equal(t, want, Build(f))
}

func TestBuild_MinimalFilter(t *testing.T) {
	t.Parallel()
	f := baseFilter()
	f.IssueTypes = nil
	assert.Equal(t, `project = P AND cf[11357] = "Organisation" ORDER BY key asc`, Build(f))
}

func TestBuild_LeapYearFebruary(t *testing.T) {
	t.Parallel()
	f := baseFilter()
	f.Month = "2024-02"
	got := Build(f)
	assert.Contains(t, got, `dueDate >= "2024-02-01" AND dueDate <= "2024-02-29"`)

	f.Month = "2023-02"
	got = Build(f)
	assert.Contains(t, got, `dueDate >= "2023-02-01" AND dueDate <= "2023-02-28"`)
}

func TestBuild_MalformedMonthOmitsDateClause(t *testing.T) {
	t.Parallel()
	for _, month := range []string{"2024-13-", "2024-13", "2024", "abcd-ef", "2024-00", "-"} {
		f := baseFilter()
		f.Month = month
		got := Build(f)
		assert.NotContains(t, got, "dueDate", "month %q", month)
		assert.Equal(t, `project = P AND issuetype in ("Story", "Task", "Bug") AND cf[11357] = "Organisation" ORDER BY key asc`, got)
	}
}

func TestBuild_SearchEscapesQuotes(t *testing.T) {
	t.Parallel()
	f := baseFilter()
	f.Search = `the "big" one`
	assert.Contains(t, Build(f), `summary ~ "the \"big\" one"`)
}

func TestMonthRange(t *testing.T) {
	t.Parallel()
	cases := []struct {
		month       string
		first, last string
		ok          bool
	}{
		{"2024-01", "2024-01-01", "2024-01-31", true},
		{"2024-04", "2024-04-01", "2024-04-30", true},
		{"2024-12", "2024-12-01", "2024-12-31", true},
		{"1900-02", "1900-02-01", "1900-02-28", true},
		{"2000-02", "2000-02-01", "2000-02-29", true},
		{"2024-2", "2024-02-01", "2024-02-29", true},
		{"2024-13", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		first, last, ok := MonthRange(tc.month)
		assert.Equal(t, tc.ok, ok, tc.month)
		assert.Equal(t, tc.first, first, tc.month)
		assert.Equal(t, tc.last, last, tc.month)
	}
}

func TestEscape(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `a \"b\" c`, Escape(`a "b" c`))
	assert.Equal(t, `path\\to`, Escape(`path\to`))
	assert.Equal(t, "plain", Escape("plain"))
}

func TestProjectOnly(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "project = DASH", ProjectOnly("DASH"))
}
