package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jiradash/internal/tracker"
)

// handleValidateAuth reports the account behind the configured credentials.
func (s *Server) handleValidateAuth(c *gin.Context) {
	status, err := s.svc.Authenticate(c.Request.Context())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, tracker.ErrUnauthorized) {
			code = http.StatusUnauthorized
		}
		s.respondError(c, code, err)
		return
	}
	respondSuccess(c, http.StatusOK, status)
}

// handleValidateProject checks that a project key exists.
func (s *Server) handleValidateProject(c *gin.Context) {
	project, err := s.svc.ValidateProject(c.Request.Context(), c.Param("project_key"))
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, tracker.ErrNotFound) {
			code = http.StatusNotFound
		}
		s.respondError(c, code, err)
		return
	}
	respondSuccess(c, http.StatusOK, project)
}

// handleIssueTypes lists the issue types of a project.
func (s *Server) handleIssueTypes(c *gin.Context) {
	types, err := s.svc.IssueTypes(c.Request.Context(), c.Param("project_key"))
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issue_types": types})
}
