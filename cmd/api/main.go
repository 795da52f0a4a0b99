package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/internal/server"
	"github.com/noah-isme/institute-compass-api/pkg/cache"
	"github.com/noah-isme/institute-compass-api/pkg/config"
	"github.com/noah-isme/institute-compass-api/pkg/database"
	"github.com/noah-isme/institute-compass-api/pkg/logger"
)

// @title Institute Compass API
// @version 1.0.0
// @description Administration API for a coaching institute
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWT.Ephemeral {
		logr.Warn("JWT_SECRET not set, using a random per-process secret; sessions end on restart")
	}

	db, err := database.NewPostgres(cfg.Database)
	if db == nil {
		logr.Fatal("failed to open database pool", zap.Error(err))
	}
	defer db.Close()
	if err != nil {
		logr.Warn("database unreachable at startup, serving degraded", zap.String("host", cfg.Database.Host), zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis, 2*time.Second)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	container := server.NewContainer(cfg, db, redisClient, logr)
	router := server.NewRouter(server.Options{
		Production:     cfg.IsProduction(),
		APIPrefix:      cfg.APIPrefix,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		StaticDir:      cfg.StaticDir,
	}, container.Dependencies(logr))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Info("server starting", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env), zap.String("api_prefix", cfg.APIPrefix))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
