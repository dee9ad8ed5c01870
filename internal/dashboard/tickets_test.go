package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jiradash/internal/config"
	"jiradash/internal/models"
	"jiradash/internal/tracker"
)

func strPtr(s string) *string { return &s }

func TestIssueTypeRef_Unmarshal(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		want    IssueTypeRef
		wantErr bool
	}{
		{raw: `"Story"`, want: IssueTypeRef{Name: "Story"}},
		{raw: `{"id":"10001"}`, want: IssueTypeRef{ID: "10001"}},
		{raw: `{"id":10001,"name":"Story"}`, want: IssueTypeRef{ID: "10001", Name: "Story"}},
		{raw: `{"name":"Bug"}`, want: IssueTypeRef{Name: "Bug"}},
		{raw: `null`, want: IssueTypeRef{}},
		{raw: `42`, wantErr: true},
		{raw: `["Story"]`, wantErr: true},
		{raw: `{"id":true}`, wantErr: true},
	}
	for _, tc := range cases {
		var got IssueTypeRef
		err := json.Unmarshal([]byte(tc.raw), &got)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestCreateTicketRequest_Validate(t *testing.T) {
	t.Parallel()
	valid := CreateTicketRequest{Summary: "Add SSO", IssueType: IssueTypeRef{Name: "Story"}}
	require.NoError(t, valid.Validate())

	missingSummary := valid
	missingSummary.Summary = "  "
	err := missingSummary.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "summary")

	missingType := valid
	missingType.IssueType = IssueTypeRef{}
	err = missingType.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue_type")

	badDue := valid
	badDue.DueDate = strPtr("03/01/2024")
	assert.Error(t, badDue.Validate())
}

func TestComposeFields(t *testing.T) {
	t.Parallel()
	svc := New(nil, nil, testConfig(), nil)

	t.Run("required_only", func(t *testing.T) {
		t.Parallel()
		got := svc.composeFields("DASH", CreateTicketRequest{
			Summary:     " Add SSO ",
			IssueType:   IssueTypeRef{Name: "Story"},
			Description: strPtr(""),
		}, "Organisation")
		want := map[string]any{
			"project":           map[string]any{"key": "DASH"},
			"summary":           "Add SSO",
			"issuetype":         map[string]any{"name": "Story"},
			"customfield_11357": map[string]any{"value": "Organisation"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("composeFields mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("all_optional", func(t *testing.T) {
		t.Parallel()
		points := 5.0
		got := svc.composeFields("DASH", CreateTicketRequest{
			Summary:     "Add SSO",
			IssueType:   IssueTypeRef{ID: "10001", Name: "Story"},
			Description: strPtr("Support SAML"),
			Priority:    strPtr("High"),
			Assignee:    strPtr("557058:alice"),
			DueDate:     strPtr("2024-03-01"),
			StoryPoints: &points,
			EpicLink:    strPtr("DASH-100"),
			Components:  []string{"auth", ""},
			Labels:      []string{"security"},
			Backer:      NewBackerInput("Finance, Legal"),
		}, "Internal")
		want := map[string]any{
			"project":           map[string]any{"key": "DASH"},
			"summary":           "Add SSO",
			"issuetype":         map[string]any{"id": "10001"},
			"customfield_11357": map[string]any{"value": "Internal"},
			"description":       "Support SAML",
			"priority":          map[string]any{"name": "High"},
			"assignee":          map[string]any{"accountId": "557058:alice"},
			"duedate":           "2024-03-01",
			"customfield_10016": 5.0,
			"customfield_10014": "DASH-100",
			"components":        []map[string]any{{"name": "auth"}},
			"labels":            []string{"security"},
			"customfield_10100": "Finance\nLegal",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("composeFields mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("list_backers", func(t *testing.T) {
		t.Parallel()
		listSvc := New(nil, nil, testConfig(func(c *config.Config) { c.Backers.Mode = config.BackersList }), nil)
		got := listSvc.composeFields("DASH", CreateTicketRequest{
			Summary:   "Add SSO",
			IssueType: IssueTypeRef{Name: "Story"},
			Backer:    NewBackerInput("Finance", "Finance", "Legal"),
		}, "Organisation")
		assert.Equal(t, []string{"Finance", "Legal"}, got["customfield_10100"])
	})
}

func TestCreateTicket_ValidationBeforeUpstream(t *testing.T) {
	t.Parallel()
	svc, fake, journal := newTestService(t)

	_, err := svc.CreateTicket(context.Background(), "DASH", CreateTicketRequest{
		IssueType: IssueTypeRef{Name: "Story"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Empty(t, fake.Calls())
	assert.Empty(t, journal.all())
}

func TestCreateTicket_DiscoversVisibility(t *testing.T) {
	t.Parallel()
	svc, fake, journal := newTestService(t)
	fake.AddProject("DASH", "Dashboard", "", tracker.IssueType{ID: "10001", Name: "Story"})
	fake.AddField(tracker.Field{ID: "customfield_11357", Name: "Visibility", Custom: true},
		tracker.FieldOption{ID: "1", Value: "Private", Disabled: true},
		tracker.FieldOption{ID: "2", Value: "Company"},
		tracker.FieldOption{ID: "3", Value: "Organisation"},
	)

	created, err := svc.CreateTicket(context.Background(), "DASH", CreateTicketRequest{
		Summary:   "Add SSO",
		IssueType: IssueTypeRef{ID: "10001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "DASH-1", created.Key)
	assert.Equal(t, fake.URL+"/browse/DASH-1", created.URL)

	stored := fake.Issue("DASH-1")
	assert.Equal(t, map[string]any{"value": "Company"}, stored["customfield_11357"])

	entries := journal.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionTicketCreated, entries[0].Action)
	assert.Equal(t, "DASH-1", entries[0].IssueKey)
}

func TestCreateTicket_VisibilityFallback(t *testing.T) {
	t.Parallel()
	svc, fake, _ := newTestService(t)
	fake.AddProject("DASH", "Dashboard", "", tracker.IssueType{ID: "10001", Name: "Story"})

	_, err := svc.CreateTicket(context.Background(), "DASH", CreateTicketRequest{
		Summary:   "Add SSO",
		IssueType: IssueTypeRef{Name: "Story"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": "Organisation"}, fake.Issue("DASH-1")["customfield_11357"])
}

func TestCreateTicket_OnlyDisabledOptionsFallsBack(t *testing.T) {
	t.Parallel()
	svc, fake, _ := newTestService(t, func(c *config.Config) { c.Tracker.VisibilityFallback = "Everyone" })
	fake.AddProject("DASH", "Dashboard", "", tracker.IssueType{ID: "10001", Name: "Story"})
	fake.AddField(tracker.Field{ID: "customfield_11357", Name: "Visibility", Custom: true},
		tracker.FieldOption{ID: "1", Value: "Private", Disabled: true},
	)

	_, err := svc.CreateTicket(context.Background(), "DASH", CreateTicketRequest{
		Summary:   "Add SSO",
		IssueType: IssueTypeRef{Name: "Story"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": "Everyone"}, fake.Issue("DASH-1")["customfield_11357"])
}

func TestCreateTicket_UpstreamRejection(t *testing.T) {
	t.Parallel()
	svc, fake, journal := newTestService(t)
	fake.AddProject("DASH", "Dashboard", "", tracker.IssueType{ID: "10001", Name: "Story"})
	fake.FailCreate("Issue type is not valid for this project.")

	_, err := svc.CreateTicket(context.Background(), "DASH", CreateTicketRequest{
		Summary:   "Add SSO",
		IssueType: IssueTypeRef{Name: "Story"},
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "Issue type is not valid for this project.", err.Error())
	assert.Empty(t, journal.all())
}

func TestCreateTicket_RoundTrip(t *testing.T) {
	t.Parallel()
	svc, fake, _ := newTestService(t)
	fake.AddProject("DASH", "Dashboard", "",
		tracker.IssueType{ID: "10001", Name: "Story"},
		tracker.IssueType{ID: "10004", Name: "Bug"},
	)

	created, err := svc.CreateTicket(context.Background(), "DASH", CreateTicketRequest{
		Summary:   "Login button misaligned",
		IssueType: IssueTypeRef{ID: "10004"},
	})
	require.NoError(t, err)

	detail, err := svc.IssueDetail(context.Background(), created.Key)
	require.NoError(t, err)
	assert.Equal(t, "Login button misaligned", detail.Issue.Summary)
	assert.Equal(t, "Bug", detail.Issue.IssueType)
	assert.True(t, strings.HasSuffix(created.URL, "/browse/"+created.Key))
}
