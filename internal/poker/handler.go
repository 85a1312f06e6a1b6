package poker

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/beardcraft/pokering/internal/ratelimit"
	"github.com/beardcraft/pokering/internal/shared"
	"github.com/labstack/echo/v4"
)

const createRateWindow = 10 * time.Second

// Handler serves the session HTTP surface: creating a room and loading the
// room page. The realtime protocol lives in the gateway package.
type Handler struct {
	store     *Store
	limiter   *ratelimit.Limiter
	indexHTML string
	logger    *slog.Logger
}

func NewHandler(store *Store, limiter *ratelimit.Limiter, indexHTML string, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		limiter:   limiter,
		indexHTML: indexHTML,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/create", h.CreateSession)
	e.GET("/session/:id", h.GetSession)
}

// CreateSession allocates a new session and redirects the browser to it.
// Creation is IP rate limited; a full server answers 503.
func (h *Handler) CreateSession(c echo.Context) error {
	if err := h.limiter.Allow(c.Request().Context(), "create", c.RealIP(), 1, createRateWindow); err != nil {
		return shared.TooManyRequests("create_rate_limited", "please wait before creating another session")
	}

	sess, err := h.store.Create()
	if err != nil {
		h.logger.Warn("session creation rejected", "error", err)
		return shared.ServiceUnavailable("server_full", "maximum number of active sessions reached")
	}

	return c.Redirect(http.StatusFound, "/session/"+sess.ID)
}

// GetSession serves the room page. The id format is checked up front so
// arbitrary strings never reach the filesystem or the session registry.
func (h *Handler) GetSession(c echo.Context) error {
	if !ValidSessionID(c.Param("id")) {
		return shared.BadRequest("invalid_session_id", "session id must be 16 URL-safe characters")
	}
	return c.File(h.indexHTML)
}
