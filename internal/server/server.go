// Package server exposes the dashboard API over HTTP with gin.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jiradash/internal/dashboard"
	"jiradash/internal/models"
	"jiradash/internal/tracker"
)

// ActivityLog lists the writes recorded by the dashboard.
type ActivityLog interface {
	ListActivity(ctx context.Context, issueKey string, limit int) ([]models.Activity, error)
}

// Options configures the HTTP surface.
type Options struct {
	StaticDir   string
	CORSOrigins []string
}

// Server provides HTTP handlers for the JIRA dashboard API.
type Server struct {
	engine    *gin.Engine
	svc       *dashboard.Service
	activity  ActivityLog
	logger    *slog.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
// activity may be nil when the journal is disabled.
func New(svc *dashboard.Service, activity ActivityLog, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))
	router.Use(corsPolicy(opts.CORSOrigins))

	srv := &Server{
		engine:    router,
		svc:       svc,
		activity:  activity,
		logger:    logger,
		staticDir: opts.StaticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/", s.handleRoot)

	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/validate-auth", s.handleValidateAuth)
		api.GET("/activity", s.handleListActivity)

		// Request bodies are validated before the tracker gate.
		api.POST("/create-ticket/:project_key", s.bindTicket, s.requireTracker(), s.handleCreateTicket)
		api.POST("/issue/:issue_key/add-backers", s.bindBackers, s.requireTracker(), s.handleAddBackers)

		gated := api.Group("", s.requireTracker())
		{
			gated.GET("/validate-project/:project_key", s.handleValidateProject)
			gated.GET("/project/:project_key/issue-types", s.handleIssueTypes)
			gated.GET("/issues/:project_key", s.handleListIssues)
			gated.GET("/statuses/:project_key", s.handleStatuses)
			gated.GET("/issue/:issue_key", s.handleIssueDetail)
			gated.GET("/custom-field/:field_id/values", s.handleCustomFieldValues)
		}
	}

	s.mountStatic()
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "JIRA Dashboard API"})
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// queryInt reads an optional integer query parameter. A missing parameter
// yields 0.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer", "detail": name + " must be an integer"})
		return 0, false
	}
	return n, true
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, tracker.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, tracker.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the error and returns a JSON payload. The message is
// repeated under "detail", which the dashboard frontend reads.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	s.logger.Error("request failed",
		slog.String("path", c.FullPath()),
		slog.Int("status", status),
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.String("error", err.Error()))
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "detail": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
