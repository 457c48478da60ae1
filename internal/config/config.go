package config

import (
	"os"
	"time"
)

type Config struct {
	Port string

	LogLevel string
	Env      string

	// DatabaseURL empty means the in-memory stores (dev/demo mode).
	DatabaseURL string
	// RedisURL empty means in-process presence tracking.
	RedisURL string

	JWTSecret string
	TokenTTL  time.Duration

	// BackendURL is where the chat client reaches the REST endpoints,
	// SocketURL the websocket endpoint. Used by the terminal client.
	BackendURL string
	SocketURL  string
}

func LoadConfig() (*Config, error) {
	return &Config{
		Port:        GetEnv("PORT", "8081"),
		Env:         GetEnv("ENV", "development"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		DatabaseURL: GetEnv("DATABASE_URL", ""),
		RedisURL:    GetEnv("REDIS_URL", ""),
		JWTSecret:   GetEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:    GetDurationEnv("TOKEN_TTL", 24*time.Hour),
		BackendURL:  GetEnv("BACKEND_URL", "http://localhost:8081"),
		SocketURL:   GetEnv("SOCKET_URL", "ws://localhost:8081/ws"),
	}, nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
