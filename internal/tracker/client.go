package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiPrefix = "/rest/api/2"

// Client talks to the JIRA REST API using basic auth with an email and API token.
type Client struct {
	baseURL string
	email   string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New builds a client. baseURL must not end with a slash.
func New(baseURL, email, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		email:   email,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// BaseURL returns the JIRA server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Myself returns the account behind the configured credentials.
func (c *Client) Myself(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/myself", nil, nil, &u)
	return u, err
}

// Project fetches a project with its issue types.
func (c *Client) Project(ctx context.Context, key string) (Project, error) {
	var p Project
	err := c.do(ctx, http.MethodGet, "/project/"+url.PathEscape(key), nil, nil, &p)
	return p, err
}

// Search runs a JQL query and returns one page of results.
func (c *Client) Search(ctx context.Context, opts SearchOptions) (SearchResult, error) {
	q := url.Values{}
	q.Set("jql", opts.JQL)
	q.Set("startAt", strconv.Itoa(opts.StartAt))
	if opts.MaxResults > 0 {
		q.Set("maxResults", strconv.Itoa(opts.MaxResults))
	}
	if len(opts.Fields) > 0 {
		q.Set("fields", strings.Join(opts.Fields, ","))
	}

	var res SearchResult
	err := c.do(ctx, http.MethodGet, "/search", q, nil, &res)
	return res, err
}

// Issue fetches a single issue with all of its fields.
func (c *Client) Issue(ctx context.Context, key string) (Issue, error) {
	var issue Issue
	err := c.do(ctx, http.MethodGet, "/issue/"+url.PathEscape(key), nil, nil, &issue)
	return issue, err
}

// CreateIssue submits a new issue with the given field payload.
func (c *Client) CreateIssue(ctx context.Context, fields map[string]any) (CreatedIssue, error) {
	var created CreatedIssue
	err := c.do(ctx, http.MethodPost, "/issue", nil, map[string]any{"fields": fields}, &created)
	return created, err
}

// UpdateIssue sends an edit request. body is either {"fields": ...} or
// {"update": ...} as accepted by the edit issue endpoint.
func (c *Client) UpdateIssue(ctx context.Context, key string, body map[string]any) error {
	return c.do(ctx, http.MethodPut, "/issue/"+url.PathEscape(key), nil, body, nil)
}

// Fields lists every system and custom field visible to the account.
func (c *Client) Fields(ctx context.Context) ([]Field, error) {
	var fields []Field
	err := c.do(ctx, http.MethodGet, "/field", nil, nil, &fields)
	return fields, err
}

// FieldContexts lists every context of a custom field across all pages.
func (c *Client) FieldContexts(ctx context.Context, fieldID string) ([]FieldContext, error) {
	return collectPages[FieldContext](ctx, c, "/field/"+url.PathEscape(fieldID)+"/context")
}

// FieldOptions lists the options of one field context across all pages.
func (c *Client) FieldOptions(ctx context.Context, fieldID, contextID string) ([]FieldOption, error) {
	path := "/field/" + url.PathEscape(fieldID) + "/context/" + url.PathEscape(contextID) + "/option"
	return collectPages[FieldOption](ctx, c, path)
}

func collectPages[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	startAt := 0
	for {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))

		var p page[T]
		if err := c.do(ctx, http.MethodGet, path, q, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Values...)

		if p.IsLast || len(p.Values) == 0 {
			return all, nil
		}
		startAt += len(p.Values)
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal jira request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create jira request: %w", err)
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jira request %s %s: %w", method, path, err)
	}
	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read jira response: %w", err)
	}

	c.logger.Debug("jira call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp.StatusCode, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse jira response: %w", err)
	}
	return nil
}
