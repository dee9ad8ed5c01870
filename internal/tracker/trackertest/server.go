// Package trackertest provides an in-memory JIRA REST server for tests.
package trackertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"jiradash/internal/tracker"
)

const contextID = "10100"

var projectClause = regexp.MustCompile(`project = (\S+)`)

// Server fakes the subset of the JIRA REST v2 API used by the dashboard.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	me             tracker.User
	rejectAuth     bool
	rejectFieldPut bool
	createErr      string
	projects       map[string]tracker.Project
	issues         map[string]map[string]any
	order          []string
	fields         []tracker.Field
	options        map[string][]tracker.FieldOption
	counters       map[string]int
	calls          []string
	searches       []url.Values
	updates        []map[string]any
	nextID         int
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		me:       tracker.User{AccountID: "557058:bot", DisplayName: "Dashboard Bot", EmailAddress: "bot@example.com"},
		projects: make(map[string]tracker.Project),
		issues:   make(map[string]map[string]any),
		options:  make(map[string][]tracker.FieldOption),
		counters: make(map[string]int),
		nextID:   10000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/2/myself", s.handleMyself)
	mux.HandleFunc("GET /rest/api/2/project/{key}", s.handleProject)
	mux.HandleFunc("GET /rest/api/2/search", s.handleSearch)
	mux.HandleFunc("GET /rest/api/2/issue/{key}", s.handleGetIssue)
	mux.HandleFunc("POST /rest/api/2/issue", s.handleCreateIssue)
	mux.HandleFunc("PUT /rest/api/2/issue/{key}", s.handleUpdateIssue)
	mux.HandleFunc("GET /rest/api/2/field", s.handleFields)
	mux.HandleFunc("GET /rest/api/2/field/{id}/context", s.handleFieldContexts)
	mux.HandleFunc("GET /rest/api/2/field/{id}/context/{ctx}/option", s.handleFieldOptions)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// Client returns a tracker client pointed at the fake server.
func (s *Server) Client() *tracker.Client {
	return tracker.New(s.URL, "bot@example.com", "token", 0, nil)
}

// AddProject registers a project with its issue types.
func (s *Server) AddProject(key, name, category string, types ...tracker.IssueType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := tracker.Project{ID: strconv.Itoa(s.id()), Key: key, Name: name, IssueTypes: types}
	if category != "" {
		p.ProjectCategory = &tracker.NamedRef{Name: category}
	}
	s.projects[key] = p
}

// AddIssue stores an issue under key. fields uses the JIRA wire shape.
func (s *Server) AddIssue(key string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putIssue(key, fields)
}

// AddField registers field metadata and optionally its selectable options.
func (s *Server) AddField(f tracker.Field, opts ...tracker.FieldOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = append(s.fields, f)
	if len(opts) > 0 {
		s.options[f.ID] = opts
	}
}

// RejectAuth makes every request fail with 401.
func (s *Server) RejectAuth(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAuth = reject
}

// RejectFieldUpdates makes edits shaped as {"fields": ...} fail with 400.
func (s *Server) RejectFieldUpdates(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectFieldPut = reject
}

// FailCreate makes issue creation fail with the given upstream message.
func (s *Server) FailCreate(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = msg
}

// Issue returns a copy of the stored fields of an issue.
func (s *Server) Issue(key string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[key]
	if !ok {
		return nil
	}
	fields := issue["fields"].(map[string]any)
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Calls lists "METHOD /path" for every request received.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Searches lists the query parameters of every search request.
func (s *Server) Searches() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.searches...)
}

// Updates lists the bodies of every issue edit request, including rejected ones.
func (s *Server) Updates() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.updates...)
}

func (s *Server) id() int {
	s.nextID++
	return s.nextID
}

func (s *Server) putIssue(key string, fields map[string]any) {
	if _, ok := s.issues[key]; !ok {
		s.order = append(s.order, key)
	}
	s.issues[key] = map[string]any{
		"id":     strconv.Itoa(s.id()),
		"key":    key,
		"fields": fields,
	}
}

func (s *Server) authorized(w http.ResponseWriter) bool {
	s.mu.Lock()
	reject := s.rejectAuth
	s.mu.Unlock()
	if reject {
		writeError(w, http.StatusUnauthorized, "Client must be authenticated to access this resource.")
		return false
	}
	return true
}

func (s *Server) handleMyself(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w) {
		return
	}
	s.mu.Lock()
	me := s.me
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, me)
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w) {
		return
	}
	s.mu.Lock()
	p, ok := s.projects[r.PathValue("key")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No project could be found with key '%s'.", r.PathValue("key")))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w) {
		return
	}
	q := r.URL.Query()
	startAt, _ := strconv.Atoi(q.Get("startAt"))
	maxResults, err := strconv.Atoi(q.Get("maxResults"))
	if err != nil || maxResults <= 0 {
		maxResults = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = append(s.searches, q)

	prefix := ""
	if m := projectClause.FindStringSubmatch(q.Get("jql")); m != nil {
		prefix = m[1] + "-"
	}
	var matched []map[string]any
	for _, key := range s.order {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, s.issues[key])
		}
	}

	result := map[string]any{
		"startAt":    startAt,
		"maxResults": maxResults,
		"total":      len(matched),
		"issues":     []map[string]any{},
	}
	if startAt < len(matched) {
		end := min(startAt+maxResults, len(matched))
		result["issues"] = matched[startAt:end]
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w) {
		return
	}
	s.mu.Lock()
	issue, ok := s.issues[r.PathValue("key")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Issue does not exist or you do not have permission to see it.")
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w) {
		return
	}
	var body struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != "" {
		writeError(w, http.StatusBadRequest, s.createErr)
		return
	}

	fields := body.Fields
	projectRef, _ := fields["project"].(map[string]any)
	projectKey, _ := projectRef["key"].(string)
	project, ok := s.projects[projectKey]
	if !ok {
		writeFieldError(w, "project", "valid project is required")
		return
	}
	if summary, _ := fields["summary"].(string); summary == "" {
		writeFieldError(w, "summary", "You must specify a summary of the issue.")
		return
	}
	issueType, ok := resolveIssueType(project, fields["issuetype"])
	if !ok {
		writeFieldError(w, "issuetype", "valid issue type is required")
		return
	}

	fields["issuetype"] = issueType
	fields["status"] = map[string]any{"name": "To Do"}
	fields["reporter"] = s.me
	s.counters[projectKey]++
	key := fmt.Sprintf("%s-%d", projectKey, s.counters[projectKey])
	s.putIssue(key, fields)

	writeJSON(w, http.StatusCreated, tracker.CreatedIssue{
		ID:   s.issues[key]["id"].(string),
		Key:  key,
		Self: s.URL + "/rest/api/2/issue/" + key,
	})
}

func resolveIssueType(project tracker.Project, raw any) (tracker.IssueType, bool) {
	ref, _ := raw.(map[string]any)
	id, _ := ref["id"].(string)
	name, _ := ref["name"].(string)
	for _, t := range project.IssueTypes {
		if (id != "" && t.ID == id) || (id == "" && name != "" && t.Name == name) {
			return t, true
		}
	}
	return tracker.IssueType{}, false
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w) {
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, body)

	issue, ok := s.issues[r.PathValue("key")]
	if !ok {
		writeError(w, http.StatusNotFound, "Issue does not exist or you do not have permission to see it.")
		return
	}
	fields := issue["fields"].(map[string]any)

	if set, ok := body["fields"].(map[string]any); ok {
		if s.rejectFieldPut {
			for name := range set {
				writeFieldError(w, name, "Operation value must be a string")
				return
			}
		}
		for name, value := range set {
			fields[name] = value
		}
	}
	if update, ok := body["update"].(map[string]any); ok {
		for name, ops := range update {
			list, _ := ops.([]any)
			for _, op := range list {
				if m, ok := op.(map[string]any); ok {
					if v, ok := m["set"]; ok {
						fields[name] = v
					}
				}
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w) {
		return
	}
	s.mu.Lock()
	fields := append([]tracker.Field{}, s.fields...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) handleFieldContexts(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w) {
		return
	}
	s.mu.Lock()
	_, ok := s.options[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "The custom field was not found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"startAt": 0, "isLast": true,
		"values": []tracker.FieldContext{{ID: contextID, Name: "Default Configuration Scheme"}},
	})
}

func (s *Server) handleFieldOptions(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w) {
		return
	}
	s.mu.Lock()
	opts, ok := s.options[r.PathValue("id")]
	s.mu.Unlock()
	if !ok || r.PathValue("ctx") != contextID {
		writeError(w, http.StatusNotFound, "The custom field context was not found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"startAt": 0, "isLast": true, "values": opts})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"errorMessages": []string{msg}, "errors": map[string]string{}})
}

func writeFieldError(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessages": []string{}, "errors": map[string]string{field: msg}})
}
