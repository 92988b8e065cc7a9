package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"autohaus/internal/app"
	"autohaus/internal/auth"
	"autohaus/internal/cache"
	"autohaus/internal/config"
	appgraphql "autohaus/internal/graphql"
	"autohaus/internal/notify"
	"autohaus/internal/ratelimit"
	"autohaus/internal/server"
	"autohaus/internal/util"
	"autohaus/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	var autoCache app.AutoCache
	if cfg.RedisAddr != "" {
		autoCache = cache.NewAutoCache(cfg.RedisAddr, cfg.RedisPassword, 5*time.Minute)
	}

	var mailer notify.Mailer = notify.NoopMailer{}
	if cfg.AMQPURL != "" {
		amqpMailer, err := notify.NewAMQPMailer(cfg.AMQPURL, logger)
		if err != nil {
			log.Fatalf("failed to init mailer: %v", err)
		}
		defer amqpMailer.Close()
		mailer = amqpMailer
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.WriteRateLimit > 0 && cfg.RedisAddr != "" {
		limiter, err = ratelimit.NewFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.WriteRateLimit, time.Minute)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	} else {
		logger.Warn("no jwt secret configured, all callers act as dev principal")
	}

	reader := app.NewReadService(st, autoCache)
	writer := app.NewWriteService(st, reader, mailer, autoCache, logger)

	schema, err := appgraphql.NewSchema(reader, writer)
	if err != nil {
		log.Fatalf("failed to build graphql schema: %v", err)
	}

	httpServer := server.New(server.Config{
		Reader:         reader,
		Writer:         writer,
		Verifier:       verifier,
		GraphQL:        appgraphql.NewHandler(schema, verifier),
		Limiter:        limiter,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("autohaus server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
