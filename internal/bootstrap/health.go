package bootstrap

import (
	"github.com/beardcraft/pokering/internal/gateway"
	"github.com/beardcraft/pokering/internal/health"
	"github.com/beardcraft/pokering/internal/poker"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const version = "1.0.0"

func ProvideHealthHandler(store *poker.Store, hub *gateway.Hub, redisClient *redis.Client) *health.Handler {
	return health.NewHandler(store, hub, redisClient, version)
}

func requestCounterMiddleware(h *health.Handler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementConnections()
			defer h.DecrementConnections()
			return next(c)
		}
	}
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(requestCounterMiddleware(h))
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
