// Package api exposes the risk engine over HTTP: a thin gin transport in
// front of the evaluation pipeline, the population scanner, and the report
// archive, plus a websocket feed of critical alerts.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
	"github.com/renalworks/ckd-risk-engine/internal/engine"
	"github.com/renalworks/ckd-risk-engine/internal/middleware"
)

// SnapshotLister pages through the patient roster for population scans that
// are not given explicit snapshots.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit, offset int) ([]*domain.PatientSnapshot, error)
}

// Deps carries the collaborators the server fronts. Reports, Cache, and
// Lister are optional; the matching endpoints degrade when absent.
type Deps struct {
	Config       *domain.Config
	Logger       *logrus.Logger
	Orchestrator *engine.Orchestrator
	Scanner      *engine.Scanner
	Provider     domain.SnapshotProvider
	Lister       SnapshotLister
	Reports      domain.ReportStore
	Cache        domain.ReportCache
}

// Server is the HTTP front end of the risk engine.
type Server struct {
	deps   Deps
	router *gin.Engine
	hub    *AlertHub
	server *http.Server
	now    func() time.Time
}

// NewServer creates the HTTP server and wires routes and middleware.
func NewServer(deps Deps) *Server {
	if deps.Config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(deps.Config.Server.RateLimitPerSec, deps.Config.Server.RateLimitBurst))

	s := &Server{
		deps:   deps,
		router: router,
		hub:    NewAlertHub(deps.Logger),
		now:    time.Now,
	}

	s.setupRoutes()

	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.deps.Config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.hub.Close()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")

	// The stream stays outside the timeout group; it lives as long as the
	// peer does.
	v1.GET("/alerts/stream", s.hub.HandleStream)

	timed := v1.Group("")
	timed.Use(middleware.RequestTimeout(30 * time.Second))
	{
		timed.POST("/evaluate", s.handleEvaluate)
		timed.POST("/models/:model", s.handleModel)
		timed.POST("/scan", s.handleScan)
		timed.GET("/reports/:id", s.handleGetReport)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": s.now().UTC(),
		"version":   "1.0.0",
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
