package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jiradash/internal/dashboard"
)

// handleListIssues returns one page of a project's issues.
func (s *Server) handleListIssues(c *gin.Context) {
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	size, ok := queryInt(c, "size")
	if !ok {
		return
	}

	var types []string
	for _, raw := range c.QueryArray("issue_type") {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	result, err := s.svc.ListIssues(c.Request.Context(), c.Param("project_key"), dashboard.ListQuery{
		Page:       page,
		Size:       size,
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
		Month:      strings.TrimSpace(c.Query("month")),
		Search:     strings.TrimSpace(c.Query("search")),
		IssueTypes: types,
	})
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// handleStatuses lists the distinct statuses used in a project.
func (s *Server) handleStatuses(c *gin.Context) {
	statuses, err := s.svc.Statuses(c.Request.Context(), c.Param("project_key"))
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"statuses": statuses})
}

// handleIssueDetail returns an issue with its subtasks and progress.
func (s *Server) handleIssueDetail(c *gin.Context) {
	detail, err := s.svc.IssueDetail(c.Request.Context(), c.Param("issue_key"))
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, detail)
}
