package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ThemeConfigPath string
	StaticDir       string
	IndexHTML       string

	MaxSessions        int
	MaxUsersPerSession int
	IdleTimeout        time.Duration
	AbsoluteTimeout    time.Duration
	CleanupInterval    time.Duration

	CountdownStart         int
	ResetHostVoteEachRound bool
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8000"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		ThemeConfigPath: getEnv("THEME_CONFIG", "./config/themes.yaml"),
		StaticDir:       getEnv("STATIC_DIR", "./public"),
		IndexHTML:       getEnv("INDEX_HTML", "./public/index.html"),

		MaxSessions:        getEnvInt("MAX_SESSIONS", 1000),
		MaxUsersPerSession: getEnvInt("MAX_USERS_PER_SESSION", 100),
		IdleTimeout:        getEnvDuration("IDLE_TIMEOUT", 2*time.Hour),
		AbsoluteTimeout:    getEnvDuration("ABSOLUTE_TIMEOUT", 24*time.Hour),
		CleanupInterval:    getEnvDuration("CLEANUP_INTERVAL", 5*time.Minute),

		CountdownStart:         getEnvInt("COUNTDOWN_START", 3),
		ResetHostVoteEachRound: getEnv("RESET_HOST_VOTE", "false") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
