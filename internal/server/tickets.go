package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jiradash/internal/dashboard"
)

const maxFormMemory = 32 << 20

// Form fields that may carry a JSON document rather than plain text.
var jsonFormFields = map[string]bool{
	"issue_type":   true,
	"backer":       true,
	"components":   true,
	"labels":       true,
	"story_points": true,
}

// Form fields that hold lists; plain text is read as a comma separated list.
var listFormFields = map[string]bool{
	"components": true,
	"labels":     true,
}

const (
	ticketRequestKey  = "ticket_request"
	backersRequestKey = "backers_request"
)

type backersRequest struct {
	Backers dashboard.BackerInput `json:"backers"`
}

// bindTicket decodes and validates a creation request ahead of the tracker
// gate, so malformed requests never reach JIRA.
func (s *Server) bindTicket(c *gin.Context) {
	req, err := bindTicketRequest(c)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	c.Set(ticketRequestKey, req)
	c.Next()
}

// bindBackers decodes an add-backers request ahead of the tracker gate.
func (s *Server) bindBackers(c *gin.Context) {
	var req backersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Backers.IsEmpty() {
		s.respondError(c, http.StatusBadRequest, errors.New("backers is required"))
		return
	}
	c.Set(backersRequestKey, req)
	c.Next()
}

// handleCreateTicket creates an issue from the request bound by bindTicket.
func (s *Server) handleCreateTicket(c *gin.Context) {
	req := c.MustGet(ticketRequestKey).(dashboard.CreateTicketRequest)

	created, err := s.svc.CreateTicket(c.Request.Context(), c.Param("project_key"), req)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, created)
}

// handleAddBackers appends the backers bound by bindBackers to an issue.
func (s *Server) handleAddBackers(c *gin.Context) {
	req := c.MustGet(backersRequestKey).(backersRequest)

	result, err := s.svc.AddBackers(c.Request.Context(), c.Param("issue_key"), req.Backers)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// bindTicketRequest decodes a creation request. Form submissions are
// accepted too; their structured fields arrive as JSON text. Uploaded files
// are ignored.
func bindTicketRequest(c *gin.Context) (dashboard.CreateTicketRequest, error) {
	var req dashboard.CreateTicketRequest
	switch c.ContentType() {
	case gin.MIMEMultipartPOSTForm, gin.MIMEPOSTForm:
	default:
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, fmt.Errorf("invalid request body: %w", err)
		}
		return req, nil
	}

	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return req, fmt.Errorf("invalid form: %w", err)
	}

	doc := make(map[string]json.RawMessage, len(c.Request.PostForm))
	for name, values := range c.Request.PostForm {
		if len(values) == 0 {
			continue
		}
		value := strings.TrimSpace(values[0])
		if value == "" {
			continue
		}
		if jsonFormFields[name] && json.Valid([]byte(value)) {
			doc[name] = json.RawMessage(value)
			continue
		}
		var plain any = value
		if listFormFields[name] {
			plain = strings.Split(value, ",")
		}
		encoded, err := json.Marshal(plain)
		if err != nil {
			return req, err
		}
		doc[name] = encoded
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("invalid form: %w", err)
	}
	return req, nil
}
