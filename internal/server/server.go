package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"project_report_srv/internal/config"
	"project_report_srv/internal/report"
	"project_report_srv/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// HTTPServer is the lifecycle surface main depends on
type HTTPServer interface {
	Start(address string) error
	Shutdown(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	service service.ReportService
	now     func() time.Time
	logger  *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, reportService service.ReportService, logger *logrus.Logger) *Server {
	e := echo.New()
	e.Debug = cfg.IsDevelopment()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${id} ${method} ${uri} ${status} ${latency_human} ${error}\n",
	}))

	server := &Server{
		echo:    e,
		service: reportService,
		now:     time.Now,
		logger:  logger,
	}

	server.setupRoutes(cfg.Server.FunctionKey)
	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.WithField("address", address).Info("Starting HTTP server")
	err := s.echo.Start(address)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes(functionKey string) {
	// Health check
	s.echo.GET("/health", s.healthCheck)

	project := s.echo.Group("/Project/:projectId")
	project.GET("/report", s.downloadReport)
	project.GET("/storage-report", s.storageReport, FunctionKeyAuth(functionKey))
}

// healthCheck handles health check requests
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "project-report-service",
	})
}

// resolveRequest reads the path and query parameters of a report request
func (s *Server) resolveRequest(c echo.Context) (report.Request, error) {
	query := c.Request().URL.Query()
	_, present := query["format"]
	return report.Resolve(
		c.Param("projectId"),
		query.Get("format"),
		present,
		query.Get("name"),
		s.now(),
	)
}

// downloadReport renders the report and returns it as an attachment
func (s *Server) downloadReport(c echo.Context) error {
	req, err := s.resolveRequest(c)
	if err != nil {
		return s.respondError(c, err)
	}

	file, err := s.service.GenerateReport(c.Request().Context(), req)
	if err != nil {
		return s.respondError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment;filename="+file.Name)
	return c.Blob(http.StatusOK, file.ContentType, file.Data)
}

// storageReport uploads an xlsx report to blob storage and returns its links
func (s *Server) storageReport(c echo.Context) error {
	req, err := s.resolveRequest(c)
	if err != nil {
		return s.respondError(c, err)
	}

	result, err := s.service.CreateStorageReport(c.Request().Context(), req)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// respondError logs err and writes the error payload
func (s *Server) respondError(c echo.Context, err error) error {
	status := report.StatusCode(err)

	entry := s.logger.WithError(err).WithFields(logrus.Fields{
		"status":     status,
		"path":       c.Path(),
		"project_id": c.Param("projectId"),
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Report request failed")
	} else {
		entry.Warn("Report request rejected")
	}

	return WriteError(c, status, err)
}
