package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/servio/api/station-feedback-service/internal/auth"
	"gitlab.com/servio/api/station-feedback-service/internal/config"
	"gitlab.com/servio/api/station-feedback-service/internal/usecase"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
)

// Server is the HTTP surface: customer intake, the messaging webhook and
// the administrative API.
type Server struct {
	cfg           *config.Config
	engine        *gin.Engine
	httpServer    *http.Server
	feedbackSvc   *usecase.FeedbackService
	eventWorker   usecase.IEventWorker
	authenticator *auth.Authenticator
	ready         func(ctx context.Context) error
}

// NewServer wires the router. The ready probe is consulted by GET /ready;
// pass the storage ping.
func NewServer(
	cfg *config.Config,
	feedbackSvc *usecase.FeedbackService,
	eventWorker usecase.IEventWorker,
	authenticator *auth.Authenticator,
	ready func(ctx context.Context) error,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:           cfg,
		feedbackSvc:   feedbackSvc,
		eventWorker:   eventWorker,
		authenticator: authenticator,
		ready:         ready,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	engine.GET("/health", s.handleHealth)
	engine.GET("/ready", s.handleReady)
	if cfg.Metrics.Enabled {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	engine.GET("/whatsapp/webhook", s.handleWebhookVerify)
	engine.POST("/whatsapp/webhook", s.handleWebhookEvent)

	feedback := engine.Group("/feedback")
	{
		feedback.POST("", s.handleSubmitFeedback)
		feedback.POST("/", s.handleSubmitFeedback)
		feedback.GET("/:id/image/:type", s.handleFeedbackImage)
	}

	admin := engine.Group("/admin")
	{
		admin.POST("/login", s.handleAdminLogin)
		authed := admin.Group("", s.authRequired())
		authed.GET("/reports", s.handleAdminReports)
		authed.DELETE("/feedback/:id", s.handleAdminDeleteFeedback)
		authed.PATCH("/feedback/:id/status", s.handleAdminUpdateStatus)
	}

	s.engine = engine
	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Log.Info("HTTP server listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Engine exposes the router for handler tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
