package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized reports that JIRA rejected the configured credentials.
	ErrUnauthorized = errors.New("jira authentication failed")
	// ErrNotFound reports that the requested project, issue or field does not exist.
	ErrNotFound = errors.New("not found")
)

// Error is a non-2xx response from JIRA. Message carries the upstream text
// verbatim so callers can pass it through to clients.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

type errorBody struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

func newError(status int, body []byte) *Error {
	var parsed errorBody
	var parts []string
	if err := json.Unmarshal(body, &parsed); err == nil {
		parts = append(parts, parsed.ErrorMessages...)
		fields := make([]string, 0, len(parsed.Errors))
		for field := range parsed.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			parts = append(parts, field+": "+parsed.Errors[field])
		}
	}

	msg := strings.Join(parts, "; ")
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = fmt.Sprintf("JIRA API returned status %d", status)
	}
	return &Error{StatusCode: status, Message: msg}
}
