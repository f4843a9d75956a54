package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/deltawatch-lab/deltawatch/internal/core/errors"
	"github.com/deltawatch-lab/deltawatch/internal/core/storage"
	"github.com/deltawatch-lab/deltawatch/internal/scheduler"
	"github.com/gin-gonic/gin"
)

const maxHistoryLimit = 500

// HealthChecker is an interface for components that can report their health status.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// JobRunner triggers and lists scheduled jobs.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
	Jobs() []scheduler.JobInfo
}

// RunLister reads job history.
type RunLister interface {
	RecentRuns(ctx context.Context, job string, limit int) ([]storage.Run, error)
}

// Options wires the server's collaborators. Nil checkers and a nil history are
// reported as not configured.
type Options struct {
	Addr         string
	Mode         string
	Source       HealthChecker
	State        HealthChecker
	Jobs         JobRunner
	History      RunLister
	HistoryLimit int
}

type Server struct {
	Engine *gin.Engine
	Addr   string
	opts   Options
}

func New(opts Options) *Server {
	// Set Gin mode based on configuration
	if opts.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Engine: r,
		Addr:   opts.Addr,
		opts:   opts,
	}

	r.GET("/health", s.healthHandler)

	v1 := r.Group("/v1")
	v1.GET("/jobs", s.listJobsHandler)
	v1.POST("/jobs/:name/run", s.runJobHandler)
	v1.GET("/runs", s.listRunsHandler)

	return s
}

func ping(ctx context.Context, hc HealthChecker) string {
	if hc == nil {
		return "not_configured"
	}
	if err := hc.Ping(ctx); err != nil {
		return "unreachable"
	}
	return "connected"
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	src := ping(ctx, s.opts.Source)
	state := ping(ctx, s.opts.State)

	// An unconfigured source is legal: passes complete with empty summaries.
	if src == "unreachable" || state == "unreachable" {
		slog.Error("[Server] Health check failed: database unreachable", "source", src, "state", state)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"source":   src,
			"state_db": state,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"source":   src,
		"state_db": state,
	})
}

func (s *Server) listJobsHandler(c *gin.Context) {
	if s.opts.Jobs == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []scheduler.JobInfo{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": s.opts.Jobs.Jobs()})
}

func (s *Server) runJobHandler(c *gin.Context) {
	name := c.Param("name")
	if s.opts.Jobs == nil {
		abortWithError(c, http.StatusNotFound, apierrors.HttpUnknownJobError, "unknown job", name)
		return
	}

	start := time.Now()
	err := s.opts.Jobs.RunNow(c.Request.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		abortWithError(c, http.StatusNotFound, apierrors.HttpUnknownJobError, "unknown job", name)
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		abortWithError(c, http.StatusConflict, apierrors.HttpJobRunningError, "job is already running", name)
	case err != nil:
		slog.Error("[Server] Manual job run failed", "job", name, "error", err)
		abortWithError(c, http.StatusBadGateway, apierrors.HttpJobFailedError, err.Error(), name)
	default:
		c.JSON(http.StatusOK, gin.H{
			"job":         name,
			"status":      "completed",
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

func (s *Server) listRunsHandler(c *gin.Context) {
	if s.opts.History == nil {
		abortWithError(c, http.StatusServiceUnavailable, apierrors.HttpHistoryUnavailableError, "run history is not configured", nil)
		return
	}

	limit := s.opts.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			abortWithError(c, http.StatusBadRequest, apierrors.HttpInvalidLimitError,
				"limit must be between 1 and "+strconv.Itoa(maxHistoryLimit), raw)
			return
		}
		limit = n
	}

	runs, err := s.opts.History.RecentRuns(c.Request.Context(), c.Query("job"), limit)
	if err != nil {
		slog.Error("[Server] Failed to read run history", "error", err)
		abortWithError(c, http.StatusInternalServerError, apierrors.HttpInternalError, "failed to read run history", nil)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func abortWithError(c *gin.Context, status int, errorType, message string, details interface{}) {
	c.AbortWithStatusJSON(status, apierrors.ErrorResponse{
		ErrorType: errorType,
		Message:   message,
		Details:   details,
	})
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("[Server] Starting HTTP Server...", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("[Server] Stopping HTTP Server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("[Server] HTTP Server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
