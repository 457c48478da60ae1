// Package server assembles the chat service: the REST surface that
// issues tokens and serves channel backlogs, and the websocket hub that
// carries the live traffic.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/areachat/internal/api"
	"github.com/lalith-99/areachat/internal/middleware"
	"github.com/lalith-99/areachat/internal/repository"
)

// Config carries the router's wiring inputs.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	Env       string
}

// NewRouter builds the gin engine: public login and health, bearer-
// authenticated history endpoints, and the websocket upgrade route.
func NewRouter(cfg Config, chatRepo repository.ChatRepository, users repository.UserRepository, hub *Hub, logger *zap.Logger) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authHandler := api.NewAuthHandler(users, cfg.JWTSecret, cfg.TokenTTL, logger)
	r.POST("/api/auth/login", authHandler.Login)

	historyHandler := api.NewHistoryHandler(chatRepo, logger)
	chatGroup := r.Group("/api/chat")
	chatGroup.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	chatGroup.GET("/grupal", historyHandler.Global)
	chatGroup.GET("/privado/:otherId", historyHandler.Private)

	// The socket handshake authenticates from the token query parameter,
	// not the Authorization header, so it sits outside the middleware.
	r.GET("/ws", hub.HandleWS(cfg.JWTSecret))

	return r
}
