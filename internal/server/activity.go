package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jiradash/internal/models"
)

// handleListActivity lists recent writes made through the dashboard,
// optionally narrowed to one issue.
func (s *Server) handleListActivity(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	if s.activity == nil {
		respondSuccess(c, http.StatusOK, gin.H{"enabled": false, "activity": []models.Activity{}})
		return
	}

	entries, err := s.activity.ListActivity(c.Request.Context(), strings.TrimSpace(c.Query("issue")), limit)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"enabled": true, "activity": entries})
}
