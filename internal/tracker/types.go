package tracker

import (
	"encoding/json"
	"strings"
)

// User is the subset of a JIRA user record the dashboard reads.
type User struct {
	AccountID    string `json:"accountId,omitempty"`
	Name         string `json:"name,omitempty"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// NamedRef is the common {id, name} shape used for statuses, priorities and
// project categories.
type NamedRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type IssueType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Subtask     bool   `json:"subtask"`
}

type Project struct {
	ID              string      `json:"id"`
	Key             string      `json:"key"`
	Name            string      `json:"name"`
	ProjectCategory *NamedRef   `json:"projectCategory"`
	IssueTypes      []IssueType `json:"issueTypes"`
}

type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueRef is how a parent lists its subtasks.
type IssueRef struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// IssueFields holds the system fields by name. Custom fields are kept raw
// because their shape depends on the tracker's field configuration.
type IssueFields struct {
	Summary        string     `json:"summary"`
	Description    *string    `json:"description"`
	Status         *NamedRef  `json:"status"`
	IssueType      *IssueType `json:"issuetype"`
	Priority       *NamedRef  `json:"priority"`
	Assignee       *User      `json:"assignee"`
	Reporter       *User      `json:"reporter"`
	Created        string     `json:"created"`
	Updated        string     `json:"updated"`
	DueDate        *string    `json:"duedate"`
	ResolutionDate *string    `json:"resolutiondate"`
	Subtasks       []IssueRef `json:"subtasks"`

	Custom map[string]json.RawMessage `json:"-"`
}

func (f *IssueFields) UnmarshalJSON(data []byte) error {
	type plain IssueFields
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	*f = IssueFields(p)
	f.Custom = make(map[string]json.RawMessage)
	for name, raw := range all {
		if strings.HasPrefix(name, "customfield_") {
			f.Custom[name] = raw
		}
	}
	return nil
}

// CustomString returns a custom field holding a plain string, or nil when
// the field is absent, null or not a string.
func (f IssueFields) CustomString(id string) *string {
	raw, ok := f.Custom[id]
	if !ok {
		return nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return s
}

type SearchOptions struct {
	JQL        string
	StartAt    int
	MaxResults int
	Fields     []string
}

type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

type FieldSchema struct {
	Type     string `json:"type"`
	Items    string `json:"items,omitempty"`
	Custom   string `json:"custom,omitempty"`
	CustomID int    `json:"customId,omitempty"`
}

type Field struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Custom bool         `json:"custom"`
	Schema *FieldSchema `json:"schema,omitempty"`
}

type FieldContext struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type FieldOption struct {
	ID       string `json:"id"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled"`
}

// page is the envelope of JIRA's paginated field endpoints.
type page[T any] struct {
	StartAt    int  `json:"startAt"`
	MaxResults int  `json:"maxResults"`
	Total      int  `json:"total"`
	IsLast     bool `json:"isLast"`
	Values     []T  `json:"values"`
}
