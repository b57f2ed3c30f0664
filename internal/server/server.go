// Package server exposes the inbound email webhook and the scheduled trigger
// over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"daily-digest/internal/config"
	"daily-digest/internal/logging"
	"daily-digest/internal/model"
	"daily-digest/internal/pipeline"

	"github.com/gin-gonic/gin"
)

// Runner runs one scheduled batch.
type Runner interface {
	RunBatch(ctx context.Context) ([]pipeline.UserResult, error)
}

// Ingestor queues an inbound email.
type Ingestor interface {
	Accept(ctx context.Context, e model.InboundEmail) (string, error)
}

type Server struct {
	router        *gin.Engine
	runner        Runner
	ingest        Ingestor
	cronSecret    string
	webhookSecret string
	log           *slog.Logger
}

func New(cfg config.ServerConfig, runner Runner, ingest Ingestor, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	s := &Server{
		router:        router,
		runner:        runner,
		ingest:        ingest,
		cronSecret:    cfg.CronSecret,
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api")
	{
		api.POST("/email/webhook", s.handleEmailWebhook)
		api.GET("/cron/digest", s.handleCronDigest)
		api.POST("/cron/digest", s.handleCronDigest)
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), s.log))
		c.Next()
		s.log.Info("server: request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}
