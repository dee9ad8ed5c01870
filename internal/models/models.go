package models

import "time"

// User is the account behind the configured JIRA credentials.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthStatus reports whether the configured credentials were accepted.
type AuthStatus struct {
	Authenticated bool `json:"authenticated"`
	User          User `json:"user"`
}

// Project describes a JIRA project as reported by validate-project.
type Project struct {
	Exists          bool    `json:"exists"`
	ID              string  `json:"id"`
	Key             string  `json:"key"`
	Name            string  `json:"name"`
	ProjectCategory *string `json:"projectCategory"`
}

// IssueType is an issue type available in a project.
type IssueType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// IssueItem is a row of the paginated issue listing.
type IssueItem struct {
	Key         string  `json:"key"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Assignee    *string `json:"assignee"`
	Reporter    *string `json:"reporter"`
	IssueType   string  `json:"issue_type"`
	Status      string  `json:"status"`
	Priority    *string `json:"priority"`
	StartDate   *string `json:"start_date"`
	DueDate     *string `json:"due_date"`
}

// IssuePage is one page of the issue listing with the overall total.
type IssuePage struct {
	Items []IssueItem `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}

// Subtask is a child issue. It refers to its parent by key only.
type Subtask struct {
	Key            string  `json:"key"`
	ParentKey      string  `json:"parent_key,omitempty"`
	Summary        string  `json:"summary"`
	Description    *string `json:"description"`
	Status         string  `json:"status"`
	IssueType      string  `json:"issue_type"`
	Priority       *string `json:"priority"`
	Assignee       *string `json:"assignee"`
	Reporter       *string `json:"reporter"`
	Created        string  `json:"created"`
	Updated        string  `json:"updated"`
	DueDate        *string `json:"due_date"`
	ResolutionDate *string `json:"resolution_date"`
	StartDate      *string `json:"start_date"`
}

// Issue is a full issue record: the subtask shape plus backers and the keys
// of its own subtasks.
type Issue struct {
	Subtask
	Backers  []string `json:"backers"`
	Subtasks []string `json:"subtask_keys"`
}

// Progress summarizes subtask statuses. Percentages are rounded to two
// decimals independently and are all zero when Total is zero.
type Progress struct {
	Total             int     `json:"total"`
	Completed         int     `json:"completed"`
	InProgress        int     `json:"in_progress"`
	Todo              int     `json:"todo"`
	CompletedPercent  float64 `json:"completed_percentage"`
	InProgressPercent float64 `json:"in_progress_percentage"`
	TodoPercent       float64 `json:"todo_percentage"`
}

type IssueDetail struct {
	Issue     Issue     `json:"issue"`
	Subtasks  []Subtask `json:"subtasks"`
	Assignees []string  `json:"assignees"`
	Progress  Progress  `json:"progress"`
}

type CreatedTicket struct {
	Key string `json:"issue_key"`
	URL string `json:"url"`
}

type BackersResult struct {
	Count   int      `json:"count"`
	Backers []string `json:"backers"`
	Added   []string `json:"added"`
}

type FieldValue struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// CustomField is field metadata plus its active (non-disabled) options.
type CustomField struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Custom bool         `json:"custom"`
	Type   string       `json:"type"`
	Values []FieldValue `json:"values"`
}

// Activity actions recorded in the write journal.
const (
	ActionTicketCreated = "ticket_created"
	ActionBackersAdded  = "backers_added"
)

// Activity is one write performed through this service.
type Activity struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	IssueKey   string    `json:"issue_key"`
	ProjectKey string    `json:"project_key"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
