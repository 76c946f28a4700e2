package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"courseportal/internal/app"
	"courseportal/internal/config"
	"courseportal/internal/ratelimit"
	"courseportal/internal/server"
	"courseportal/internal/session"
	"courseportal/internal/storage"
	"courseportal/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	// Without Redis, sessions are revoked in-process and login throttling
	// is off. Fine for a single instance, set redisAddr for anything else.
	var (
		revoker      session.Revoker = session.NewMemoryRevoker()
		loginLimiter *ratelimit.FixedWindowLimiter
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		revoker = session.NewRedisRevoker(client)
		if cfg.LoginRateLimitPerMinute > 0 {
			loginLimiter, err = ratelimit.NewFixedWindowLimiter(
				client, "courseportal:ratelimit:login", cfg.LoginRateLimitPerMinute, time.Minute)
			if err != nil {
				log.Fatalf("failed to init login limiter: %v", err)
			}
		}
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:    cfg.DatabaseURL,
		UploadDir:      cfg.UploadDir,
		StorageBackend: cfg.StorageBackend,
		MinioEndpoint:  cfg.MinioEndpoint,
		MinioAccessKey: cfg.MinioAccessKey,
		MinioSecretKey: cfg.MinioSecretKey,
		MinioBucket:    cfg.MinioBucket,
		MinioUseSSL:    cfg.MinioUseSSL,
		JWTSecret:      cfg.JWTSecret,
		SessionTTL:     sessionTTL,
		Revoker:        revoker,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	if cfg.AdminEmail != "" {
		if err := appCore.EnsureAdmin(cfg.AdminEmail, cfg.AdminName, cfg.AdminPassword); err != nil {
			log.Fatalf("failed to seed admin account: %v", err)
		}
	}

	httpServer, err := server.New(server.Config{
		App:          appCore,
		LoginLimiter: loginLimiter,
		TaskPolicy: storage.NewPolicy(
			cfg.TaskUpload.MaxFileBytes, cfg.TaskUpload.MaxFiles, cfg.TaskUpload.AllowedTypes),
		SubmissionPolicy: storage.NewPolicy(
			cfg.SubmissionUpload.MaxFileBytes, cfg.SubmissionUpload.MaxFiles, cfg.SubmissionUpload.AllowedTypes),
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      util.WithRequestLog(httpServer.Router()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
