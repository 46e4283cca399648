package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tsamsiyu/k8schema/internal/api/handlers"
	"github.com/tsamsiyu/k8schema/internal/api/middleware"
	"github.com/tsamsiyu/k8schema/internal/config"
	"github.com/tsamsiyu/k8schema/internal/metrics"
)

type Server struct {
	config *config.ServerConfig
	logger *zap.Logger
	router *gin.Engine
	server *http.Server
	addr   net.Addr
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
	schemaHandler *handlers.SchemaHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.Metrics(m))
	router.Use(middleware.RequestLogger(logger))
	if len(cfg.Server.AllowOrigins) > 0 {
		router.Use(middleware.CORS(cfg.Server.AllowOrigins))
	}
	router.Use(middleware.ErrorMapper(logger))

	router.GET("/all.json", schemaHandler.All)
	router.GET("/_definitions.json", schemaHandler.Definitions)
	router.GET("/definitions/:name", schemaHandler.Definition)

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	return router
}

func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	router *gin.Engine,
) *Server {
	return &Server{
		config: &cfg.Server,
		logger: logger,
		router: router,
	}
}

// Start binds the listen address and serves in the background. A bind
// failure is returned to the caller.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.addr = listener.Addr()

	s.logger.Info("Starting HTTP server",
		zap.String("addr", listener.Addr().String()),
		zap.Int("port", s.config.Port))

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	return nil
}

// Addr is the bound listen address, nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
