package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/beardcraft/pokering/internal/gateway"
	"github.com/beardcraft/pokering/internal/poker"
	"github.com/beardcraft/pokering/internal/ratelimit"
	"github.com/beardcraft/pokering/internal/theme"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideHub(logger *slog.Logger) *gateway.Hub {
	return gateway.NewHub(logger)
}

func ProvideStore(cfg *Config, hub *gateway.Hub, logger *slog.Logger) *poker.Store {
	return poker.NewStore(poker.Config{
		MaxSessions:            cfg.MaxSessions,
		MaxUsersPerSession:     cfg.MaxUsersPerSession,
		IdleTimeout:            cfg.IdleTimeout,
		AbsoluteTimeout:        cfg.AbsoluteTimeout,
		CleanupInterval:        cfg.CleanupInterval,
		CountdownStart:         cfg.CountdownStart,
		ResetHostVoteEachRound: cfg.ResetHostVoteEachRound,
	}, hub, logger.With("component", "poker"))
}

func ProvideLimiter(redisClient *redis.Client, logger *slog.Logger) *ratelimit.Limiter {
	return ratelimit.NewLimiter(redisClient, logger)
}

func ProvideGatewayMetrics() *gateway.Metrics {
	return gateway.NewMetrics()
}

func ProvidePokerHandler(store *poker.Store, limiter *ratelimit.Limiter, cfg *Config, logger *slog.Logger) *poker.Handler {
	return poker.NewHandler(store, limiter, cfg.IndexHTML, logger.With("handler", "poker"))
}

func ProvideGatewayHandler(store *poker.Store, hub *gateway.Hub, limiter *ratelimit.Limiter, metrics *gateway.Metrics, logger *slog.Logger) *gateway.Handler {
	return gateway.NewHandler(store, hub, limiter, metrics, logger.With("handler", "gateway"))
}

func ProvideThemeLoader(cfg *Config, logger *slog.Logger) *theme.Loader {
	return theme.NewLoader(cfg.ThemeConfigPath, logger)
}

func ProvideThemeHandler(loader *theme.Loader, logger *slog.Logger) *theme.Handler {
	return theme.NewHandler(loader, version, logger.With("handler", "theme"))
}

func ProvideRegistry(store *poker.Store, hub *gateway.Hub, metrics *gateway.Metrics) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	startTime := time.Now()

	gauges := []prometheus.GaugeFunc{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pokering_uptime_seconds",
			Help: "Application uptime in seconds.",
		}, func() float64 {
			return time.Since(startTime).Seconds()
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pokering_sessions_active",
			Help: "Current number of active sessions.",
		}, func() float64 {
			sessions, _ := store.Counts()
			return float64(sessions)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pokering_sessions_max",
			Help: "Maximum allowed sessions.",
		}, func() float64 {
			return float64(store.Config().MaxSessions)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pokering_users_total",
			Help: "Total users across all sessions.",
		}, func() float64 {
			_, users := store.Counts()
			return float64(users)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pokering_connections_active",
			Help: "Live websocket connections.",
		}, func() float64 {
			return float64(hub.ConnCount())
		}),
	}
	for _, g := range gauges {
		if err := reg.Register(g); err != nil {
			return nil, err
		}
	}
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

type HandlerParams struct {
	fx.In

	PokerHandler   *poker.Handler
	GatewayHandler *gateway.Handler
	ThemeHandler   *theme.Handler
	Registry       *prometheus.Registry
	Config         *Config
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	params.PokerHandler.RegisterRoutes(e)
	params.GatewayHandler.RegisterRoutes(e)
	params.ThemeHandler.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{})))

	e.Static("/assets", params.Config.StaticDir)
	e.GET("/", func(c echo.Context) error {
		return c.File(params.Config.IndexHTML)
	})
}

func StartJanitor(lc fx.Lifecycle, store *poker.Store) {
	stop := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go store.RunJanitor(stop)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			return nil
		},
	})
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideHub,
		ProvideStore,
		ProvideLimiter,
		ProvideGatewayMetrics,
		ProvidePokerHandler,
		ProvideGatewayHandler,
		ProvideThemeLoader,
		ProvideThemeHandler,
		ProvideRegistry,
	),
	fx.Invoke(RegisterRoutes, StartJanitor),
)

func Run() {
	fx.New(
		fx.Provide(LoadConfig),
		InfrastructureModule,
		ServerModule,
		HandlersModule,
		HealthModule,
	).Run()
}
