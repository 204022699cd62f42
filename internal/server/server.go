// Package server exposes the REST intake and read API: algorithm and task
// creation, task and run lookups, health, and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MatweyL/Potok/internal/config"
	"github.com/MatweyL/Potok/internal/domain"
	"github.com/MatweyL/Potok/internal/shared/logging"
	"github.com/MatweyL/Potok/internal/store"
)

// Store is the persistence surface the API serves from.
type Store interface {
	CreateTasks(ctx context.Context, bodies []domain.PayloadBody, cfg domain.TaskConfiguration, at time.Time) ([]domain.Task, error)
	GetTask(ctx context.Context, id int64) (domain.Task, error)
	GetTaskRun(ctx context.Context, id int64) (domain.TaskRun, error)
	ListTaskRuns(ctx context.Context, filters []store.Filter, orders []store.Order, limit, offset int) ([]domain.TaskRun, error)
	CreateAlgorithm(ctx context.Context, algorithm domain.MonitoringAlgorithm) (domain.MonitoringAlgorithm, error)
	GetAlgorithm(ctx context.Context, id int64) (domain.MonitoringAlgorithm, error)
}

// Server wraps the gin engine and the underlying http server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	store      Store
	now        func() time.Time
	logger     logging.Logger
}

// New builds the API server. A nil clock defaults to time.Now.
func New(cfg config.ServerConfig, st Store, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	engine.Use(cors.New(corsConfig))

	server := &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:    cfg.Listen,
			Handler: engine,
		},
		store:  st,
		now:    now,
		logger: logging.NewComponentLogger("APIServer"),
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")

	api.POST("/monitoring-algorithms", s.handleCreateAlgorithm)
	api.GET("/monitoring-algorithms/:id", s.handleGetAlgorithm)

	api.POST("/tasks", s.handleCreateTasks)
	api.GET("/tasks/:id", s.handleGetTask)

	api.GET("/task-runs", s.handleListTaskRuns)
	api.GET("/task-runs/:id", s.handleGetTaskRun)
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
