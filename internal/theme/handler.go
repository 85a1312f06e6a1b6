package theme

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler exposes the theme and version endpoints.
type Handler struct {
	loader  *Loader
	version string
	logger  *slog.Logger
}

func NewHandler(loader *Loader, version string, logger *slog.Logger) *Handler {
	return &Handler{
		loader:  loader,
		version: version,
		logger:  logger.With("component", "theme_handler"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/theme", h.GetTheme)
	e.GET("/version", h.GetVersion)
}

// GetTheme returns the currently active theme. Config problems degrade to
// the built-in default rather than an error response.
func (h *Handler) GetTheme(c echo.Context) error {
	cfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error("theme config unreadable", "error", err)
		return c.JSON(http.StatusOK, Default())
	}
	if cfg == nil {
		return c.JSON(http.StatusOK, Default())
	}
	return c.JSON(http.StatusOK, cfg.Active(time.Now()))
}

func (h *Handler) GetVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"version": h.version})
}
