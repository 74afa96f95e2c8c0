package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bodari/config"
	"bodari/internal/metrics"
	"bodari/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	server  *http.Server
	engine  *gin.Engine
	tracker Tracker
	db      Pinger
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewServer builds the JSON API. db may be nil, in which case /health does
// not probe storage.
func NewServer(cfg config.ServerConfig, tracker Tracker, db Pinger, m *metrics.Metrics, log *logger.Logger) *Server {
	s := &Server{
		tracker: tracker,
		db:      db,
		metrics: m,
		logger:  log,
	}

	engine := gin.New()
	engine.Use(RequestID(), Recovery(log), RequestLogger(log, m), CORS(cfg.AllowedOrigins))
	s.engine = engine
	s.routes()

	s.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.engine.Group("/api/v1")

	users := api.Group("/users/:id")
	users.GET("", s.getUser)
	users.POST("/profile", s.createProfile)
	users.GET("/profile", s.getProfile)
	users.GET("/summary", s.summary)
	users.POST("/meals", s.logMeal)
	users.GET("/meals", s.mealHistory)
	users.POST("/pantry", s.savePantry)
	users.GET("/pantry", s.getPantry)
	users.GET("/plan", s.weeklyPlan)
	users.POST("/plan/regenerate", s.regeneratePlan)
	users.GET("/grocery", s.groceryList)

	api.GET("/recipes", s.listRecipes)
	api.POST("/recipes", s.addRecipe)
}

// Handler exposes the engine for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	s.logger.Infow("Starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
