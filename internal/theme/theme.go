// Package theme serves the seasonal UI theme. Themes and their date
// schedule live in a YAML file that is re-read only when its mtime
// changes, so the endpoint stays cheap under polling clients.
package theme

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Theme is the client-visible theme payload.
type Theme struct {
	Name        string            `koanf:"name" json:"name"`
	Colors      map[string]string `koanf:"colors" json:"colors"`
	Logo        string            `koanf:"logo" json:"logo"`
	Decorations map[string]any    `koanf:"decorations" json:"decorations,omitempty"`
}

// ScheduleEntry activates a named theme between two month-day dates,
// inclusive. Dates use the "01-02" form and are compared as strings, so a
// range never spans a year boundary.
type ScheduleEntry struct {
	Start string `koanf:"start"`
	End   string `koanf:"end"`
	Theme string `koanf:"theme"`
}

// Config is the parsed theme file.
type Config struct {
	Themes   map[string]Theme `koanf:"themes"`
	Schedule []ScheduleEntry  `koanf:"schedule"`
}

// Default returns the built-in theme used when no config file exists or
// the file cannot be parsed.
func Default() Theme {
	return Theme{
		Name: "Default",
		Colors: map[string]string{
			"primary-bg":       "#001f3f",
			"primary-action":   "#0074D9",
			"primary-hover":    "#005fa3",
			"success":          "#2ECC40",
			"card-bg":          "#003366",
			"modal-bg":         "#003366",
			"error":            "#FF4136",
			"secondary-action": "#FF851B",
			"secondary-hover":  "#cc6c16",
			"text-primary":     "#ffffff",
			"text-secondary":   "#cccccc",
		},
		Logo: "beardcraft.png",
	}
}

// Active resolves the theme for the given moment. An unknown schedule
// target falls back to the file's default theme, then to the built-in one.
func (c *Config) Active(now time.Time) Theme {
	date := now.Format("01-02")

	name := "default"
	for _, entry := range c.Schedule {
		if entry.Start == "" || entry.End == "" || entry.Theme == "" {
			continue
		}
		if entry.Start <= date && date <= entry.End {
			name = entry.Theme
			break
		}
	}

	if th, ok := c.Themes[name]; ok {
		return th
	}
	if th, ok := c.Themes["default"]; ok {
		return th
	}
	return Default()
}

// Loader reads the theme file, caching the parsed config until the file
// changes on disk.
type Loader struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	cached *Config
	mtime  time.Time
}

func NewLoader(path string, logger *slog.Logger) *Loader {
	return &Loader{
		path:   path,
		logger: logger.With("component", "theme"),
	}
}

// Load returns the parsed theme config, or nil when the file is absent.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := os.Stat(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	if l.cached != nil && info.ModTime().Equal(l.mtime) {
		return l.cached, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(l.path), yaml.Parser()); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	l.cached = &cfg
	l.mtime = info.ModTime()
	l.logger.Info("theme config loaded", "path", l.path, "mtime", l.mtime)
	return &cfg, nil
}
