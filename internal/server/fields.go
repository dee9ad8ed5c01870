package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleCustomFieldValues returns a field's metadata and active options.
func (s *Server) handleCustomFieldValues(c *gin.Context) {
	field, err := s.svc.CustomFieldValues(c.Request.Context(), c.Param("field_id"))
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, field)
}
