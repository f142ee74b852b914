package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"edustore/internal/app"
	"edustore/internal/config"
	"edustore/internal/ratelimit"
	"edustore/internal/server"
	"edustore/internal/util"
	"edustore/pkg/queue"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var cleanup queue.Enqueuer
	var cleanupQueue *queue.RedisCleanupQueue
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		cleanupQueue, err = queue.NewRedisCleanupQueue(queue.CleanupQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("failed to init cleanup queue: %v", err)
		}
		cleanup = cleanupQueue
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:    cfg.DatabaseURL,
		RedisAddr:      cfg.RedisAddr,
		RedisPassword:  cfg.RedisPassword,
		JWTSecret:      cfg.JWTSecret,
		SessionTTL:     time.Duration(cfg.AccessTokenTTLMin) * time.Minute,
		RefreshTTL:     time.Duration(cfg.RefreshTokenTTLHr) * time.Hour,
		MinioEndpoint:  cfg.MinioEndpoint,
		MinioAccessKey: cfg.MinioAccessKey,
		MinioSecretKey: cfg.MinioSecretKey,
		MinioBucket:    cfg.MinioBucket,
		MinioPublicURL: cfg.MinioPublicURL,
		MinioUseSSL:    cfg.MinioUseSSL,
		GeminiAPIKey:   cfg.GeminiAPIKey,
		GeminiModel:    cfg.GeminiModel,
		Cleanup:        cleanup,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	if cleanupQueue != nil {
		cleanupQueue.Start(context.Background(), 1, appCore.CleanupHandler)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	var authLimiter, chatLimiter *ratelimit.FixedWindowLimiter
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		authLimiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "edustore:ratelimit:auth", cfg.AuthRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init auth limiter: %v", err)
		}
		chatLimiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "edustore:ratelimit:chat", cfg.ChatRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init chat limiter: %v", err)
		}
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AuthLimiter:    authLimiter,
		ChatLimiter:    chatLimiter,
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("edustore server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
