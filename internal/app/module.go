package app

import (
	"context"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tsamsiyu/k8schema/internal/api/handlers"
	"github.com/tsamsiyu/k8schema/internal/api/server"
	"github.com/tsamsiyu/k8schema/internal/cache"
	"github.com/tsamsiyu/k8schema/internal/config"
	"github.com/tsamsiyu/k8schema/internal/fetcher"
	"github.com/tsamsiyu/k8schema/internal/kubeconfig"
	"github.com/tsamsiyu/k8schema/internal/metrics"
	"github.com/tsamsiyu/k8schema/internal/refresh"
)

// Module wires the schema server. The *config.Config is supplied by the caller
// once flags and environment have been merged and validated.
var Module = fx.Options(
	fx.Provide(
		NewLogger,
		metrics.New,
		NewCluster,
		NewHTTPClient,
		fetcher.NewOpenAPIFetcher,
		cache.NewStore,
		refresh.NewScheduler,
		func(s *refresh.Scheduler) handlers.RefreshStatus { return s },
		handlers.NewSchemaHandler,
		handlers.NewHealthHandler,
		server.NewRouter,
		server.NewServer,
	),
	fx.Invoke(registerHooks),
)

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Logging.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Level = zap.NewAtomicLevelAt(parseLogLevel(cfg.Logging.Level))
	zapConfig.Encoding = cfg.Logging.Format
	zapConfig.DisableCaller = !cfg.Logging.EnableCaller
	zapConfig.DisableStacktrace = !cfg.Logging.EnableStacktrace
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	return zapConfig.Build()
}

// NewCluster resolves the API server and credentials from the kubeconfig.
func NewCluster(cfg *config.Config, logger *zap.Logger) (*kubeconfig.Cluster, error) {
	cluster, err := kubeconfig.Load(cfg.Kube.File, cfg.Kube.Context)
	if err != nil {
		return nil, err
	}

	logger.Info("Using cluster",
		zap.String("kubeconfig", cfg.Kube.File),
		zap.String("context", cluster.Context),
		zap.String("server", cluster.Server),
		zap.Object("auth", cluster.Auth))

	return cluster, nil
}

func NewHTTPClient(cfg *config.Config, cluster *kubeconfig.Cluster) (*http.Client, error) {
	return kubeconfig.NewHTTPClient(cluster.Auth, cfg.Kube.RequestTimeout)
}

// registerHooks starts the refresh loop before the HTTP server and stops them
// in reverse order.
func registerHooks(lc fx.Lifecycle, scheduler *refresh.Scheduler, srv *server.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// The start context expires once startup completes.
			return scheduler.Start(context.Background())
		},
		OnStop: scheduler.Stop,
	})

	lc.Append(fx.Hook{
		OnStart: srv.Start,
		OnStop:  srv.Stop,
	})
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
