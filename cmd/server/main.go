package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lalith-99/areachat/internal/config"
	"github.com/lalith-99/areachat/internal/db"
	"github.com/lalith-99/areachat/internal/models"
	"github.com/lalith-99/areachat/internal/observ"
	"github.com/lalith-99/areachat/internal/repository"
	"github.com/lalith-99/areachat/internal/repository/memory"
	"github.com/lalith-99/areachat/internal/repository/postgres"
	"github.com/lalith-99/areachat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Stores: Postgres when configured, in-memory otherwise. The memory
	// mode exists for local development and ships seeded demo accounts.
	var (
		chatRepo repository.ChatRepository
		users    repository.UserRepository
	)
	if cfg.DatabaseURL != "" {
		database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()
		chatRepo = postgres.NewChatStore(database.Pool())
		users = postgres.NewUserStore(database.Pool())
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		chatRepo = memory.NewChatStore()
		users, err = seedDemoUsers(logger)
		if err != nil {
			return fmt.Errorf("seed demo users: %w", err)
		}
	}

	var presence server.PresenceRegistry
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		defer client.Close()
		presence = server.NewRedisPresence(client)
		logger.Info("presence tracking via redis")
	} else {
		presence = server.NewMemoryPresence()
	}

	hub := server.NewHub(chatRepo, presence, logger)
	router := server.NewRouter(server.Config{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		Env:       cfg.Env,
	}, chatRepo, users, hub, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("starting areachat service",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	logger.Info("stopped")
	return nil
}

// seedDemoUsers fills the in-memory user store with one company: a boss
// and two employees, password "password" for all three.
func seedDemoUsers(logger *zap.Logger) (repository.UserRepository, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}

	const companyID = "demo-company"
	store := memory.NewUserStore(
		models.User{ID: "u-jefe", CompanyID: companyID, Name: "Laura", Email: "jefe@demo.local", Role: models.RoleBoss, PasswordHash: string(hash)},
		models.User{ID: "u-ana", CompanyID: companyID, Name: "Ana", Email: "ana@demo.local", Role: models.RoleEmployee, PasswordHash: string(hash)},
		models.User{ID: "u-marco", CompanyID: companyID, Name: "Marco", Email: "marco@demo.local", Role: models.RoleEmployee, PasswordHash: string(hash)},
	)
	logger.Info("demo accounts ready",
		zap.Strings("emails", []string{"jefe@demo.local", "ana@demo.local", "marco@demo.local"}),
	)
	return store, nil
}
