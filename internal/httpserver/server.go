// Package httpserver exposes the booking service over HTTP with gin.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kashiralabs/fieldbook/pkg/booking"
)

// Server is the HTTP façade over the booking service.
type Server struct {
	cfg     Config
	logger  *zap.Logger
	service *booking.Service
	cache   *slotCache
	router  *gin.Engine
}

// New wires the router. A nil redis client disables the slot cache.
func New(cfg Config, service *booking.Service, logger *zap.Logger, redisClient *redis.Client) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("booking service is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if cfg.AuthSigningKey == "" {
		return nil, fmt.Errorf("auth signing key is required")
	}
	server := &Server{
		cfg:     cfg,
		logger:  logger,
		service: service,
		cache:   newSlotCache(redisClient, cfg.slotCacheTTL(), logger),
	}
	server.router = server.setupRouter()
	return server, nil
}

// Router returns the handler for serving or for tests.
func (server *Server) Router() http.Handler {
	return server.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.router,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("http server listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if len(server.cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     server.cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	api.POST("/bookings", optionalAuth(server.cfg.AuthSigningKey), server.handleCreateBooking)
	api.GET("/bookings/:number/status", server.handleBookingStatus)
	api.POST("/bookings/:number/cancel", server.handleCancelBooking)
	api.POST("/payments/callback", server.handlePaymentCallback)
	api.GET("/venues/:venue_id/fields/:field_id/slots", server.handleSlots)

	admin := api.Group("/admin")
	admin.Use(requireAuth(server.cfg.AuthSigningKey))
	admin.PATCH("/bookings/:id/status", server.handleOverrideStatus)

	return router
}
