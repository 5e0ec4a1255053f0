// Package server hosts the camera ingest, the viewer tile WebSockets and the
// REST API behind the dashboard.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rafall04/cctv-sub000/config"
	"github.com/rafall04/cctv-sub000/schedule"
	"github.com/rafall04/cctv-sub000/tier"
)

// Server wires the stream manager to an HTTP listener.
type Server struct {
	cfg     *config.Config
	manager *StreamManager
	router  *gin.Engine
	http    *http.Server
	log     zerolog.Logger
}

// Option customises a Server.
type Option func(*options)

type options struct {
	source    FrameSource
	scheduler schedule.Scheduler
}

// WithFrameSource replaces the FFmpeg ingest.
func WithFrameSource(src FrameSource) Option {
	return func(o *options) { o.source = src }
}

// WithScheduler replaces the wall clock used for delayed pauses.
func WithScheduler(s schedule.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// New builds a Server. hostTier is the default tier for tiles that do not
// declare one.
func New(cfg *config.Config, hostTier tier.Tier, logger zerolog.Logger, opts ...Option) *Server {
	o := options{
		source:    FFmpegSource{Log: logger},
		scheduler: schedule.Real{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		cfg:     cfg,
		manager: NewStreamManager(cfg, hostTier, o.source, o.scheduler, logger),
		log:     logger.With().Str("component", "http").Logger(),
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: s.router,
	}
	return s
}

// Manager exposes the stream manager.
func (s *Server) Manager() *StreamManager {
	return s.manager
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	sm := s.manager
	api := r.Group("/api")
	{
		api.POST("/streams", sm.handleStartStream)
		api.POST("/streams/start-with-url", sm.handleStartStreamWithURL)
		api.DELETE("/streams/:streamId", sm.handleStopStream)
		api.DELETE("/streams/:streamId/force", sm.handleForceStopStream)
		api.GET("/streams", sm.handleListStreams)
		api.GET("/streams/:streamId/stats", sm.handleGetStreamStats)
		api.GET("/streams/:streamId/frame", sm.handleGetFrame)
		api.GET("/tiles", sm.handleListTiles)
		api.GET("/dashboard", sm.handleDashboard)
		api.GET("/viewer/config", sm.handleViewerConfig)
	}

	r.GET("/ws/:streamId", sm.handleWebSocket)

	r.Static("/static", s.cfg.Server.StaticDir)
	r.GET("/viewer", func(c *gin.Context) {
		c.File(s.cfg.Server.ViewerPage)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		})
	})

	return r
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.cfg.Server.Addr).Msg("stream server starting")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops every stream, drops visibility registrations and closes the
// listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.manager.StopAll()
	time.Sleep(GracefulShutdownDelay)
	s.manager.visibility.Disconnect()
	return s.http.Shutdown(ctx)
}

// requestLogger logs every request through zerolog
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
