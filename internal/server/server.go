package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/s1d40/empathy-hub-backend/config"
	"github.com/s1d40/empathy-hub-backend/internal/handler"
	"github.com/s1d40/empathy-hub-backend/internal/middleware"
	"github.com/s1d40/empathy-hub-backend/internal/services"
	"github.com/s1d40/empathy-hub-backend/internal/transport/httpdto"
	"github.com/s1d40/empathy-hub-backend/internal/websocket"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Chat          *handler.ChatHandler
	Notifications *handler.NotificationHandler
	Sockets       *websocket.Handler
}

// HealthCheck is one dependency check reported by /health.
type HealthCheck func(ctx context.Context) error

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, resolver middleware.IdentityResolver, limiter services.MessageLimiter, checks map[string]HealthCheck) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				err = fmt.Errorf("%w: %s: %v", hub_errors.ErrServiceUnavailable, name, err)
				c.JSON(hub_errors.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), hub_errors.Code(err)))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	// Socket routes authenticate after the upgrade so they can close with a
	// policy-violation code instead of answering 401.
	s.engine.GET("/v1/chat/ws/updates", handlers.Sockets.ChatUpdates)
	s.engine.GET("/v1/chat/ws/:room_id", handlers.Sockets.ChatRoom)
	s.engine.GET("/v1/notifications/ws", handlers.Sockets.Notifications)

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(resolver))

	chat := v1.Group("/chat")
	{
		chat.POST("/initiate-direct", handlers.Chat.InitiateDirect)
		chat.GET("/rooms", handlers.Chat.ListRooms)
		chat.POST("/rooms", handlers.Chat.CreateGroup)
		chat.GET("/rooms/:room_id", handlers.Chat.GetRoom)
		chat.GET("/rooms/:room_id/messages", handlers.Chat.ListMessages)
		chat.POST("/rooms/:room_id/messages", middleware.MessageRateLimitMiddleware(limiter), handlers.Chat.SendMessage)
		chat.POST("/rooms/:room_id/read", handlers.Chat.MarkRead)
		chat.GET("/requests/pending", handlers.Chat.ListPendingRequests)
		chat.POST("/requests/:request_id/accept", handlers.Chat.AcceptRequest)
		chat.POST("/requests/:request_id/decline", handlers.Chat.DeclineRequest)
		chat.POST("/requests/:request_id/cancel", handlers.Chat.CancelRequest)
	}

	notifications := v1.Group("/notifications")
	{
		notifications.GET("", handlers.Notifications.List)
		notifications.PUT("/:id/read", handlers.Notifications.MarkRead)
		notifications.PUT("/:id/archive", handlers.Notifications.Archive)
		notifications.DELETE("/:id", handlers.Notifications.Delete)
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil && s.logger != nil {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
		return err
	case <-ctx.Done():
	}

	if s.logger != nil {
		s.logger.Infof("Quitting signal received, shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
