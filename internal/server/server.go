package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/ingestion"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/models"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/resilience"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/storage"
)

// Syncer is the part of the ingestion service exposed over HTTP.
type Syncer interface {
	SyncAccount(ctx context.Context, accountID string) (ingestion.RunReport, error)
	PublishText(ctx context.Context, text string) (resilience.Result[models.PublishResult], error)
	Status() models.RunStatus
}

// Server handles HTTP requests
type Server struct {
	config  config.ServerConfig
	syncer  Syncer
	storage storage.Storage
	log     *zap.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, syncer Syncer, store storage.Storage, logger *zap.Logger) *Server {
	s := &Server{
		config:  cfg,
		syncer:  syncer,
		storage: store,
		log:     logger.Named("server"),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.Health)
	router.GET("/accounts/:accountId/sync", s.SyncAccount)
	router.POST("/posts", s.PublishPost)
	router.GET("/records", s.ListRecords)
	router.GET("/status", s.Status)

	s.router = router
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
