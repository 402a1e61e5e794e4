package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeno-bellido/ich-backend/internal/metrics"
	"github.com/jeno-bellido/ich-backend/internal/util"
	"github.com/jeno-bellido/ich-backend/pkg/events"
	"github.com/jeno-bellido/ich-backend/pkg/storage"
	"github.com/jeno-bellido/ich-backend/pkg/store"
	"github.com/jeno-bellido/ich-backend/services/review/internal/app"
	"github.com/jeno-bellido/ich-backend/services/review/internal/config"
	"github.com/jeno-bellido/ich-backend/services/review/internal/security"
	"github.com/jeno-bellido/ich-backend/services/review/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	storeTimeout, _ := config.ParseDuration("storeTimeout", cfg.StoreTimeout, 5*time.Second)
	statsTTL, _ := config.ParseDuration("statsCacheTTL", cfg.StatsCacheTTL, time.Minute)
	jwtLeeway, _ := config.ParseDuration("jwtLeeway", cfg.JWTLeeway, 30*time.Second)
	mediaTTL, _ := config.ParseDuration("mediaURLTTL", cfg.MediaURLTTL, time.Hour)
	previous, _ := config.ParsePreviousSecrets(cfg.JWTPreviousSecrets)
	previousKeys := make([]store.SigningKey, 0, len(previous))
	for _, k := range previous {
		previousKeys = append(previousKeys, store.SigningKey{ID: k.ID, Secret: k.Secret})
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	appCfg := app.Config{
		DatabaseURL:     cfg.DatabaseURL,
		JWTSecret:       cfg.JWTSecret,
		JWTKeyID:        cfg.JWTKeyID,
		JWTPreviousKeys: previousKeys,
		JWTIssuer:       cfg.JWTIssuer,
		JWTLeeway:       jwtLeeway,
		SessionTTL:      sessionTTL,
		PasswordCost:    cfg.PasswordCost,
		StoreTimeout:    storeTimeout,
		Metrics:         collector,
	}

	if cfg.RedisAddr != "" {
		cache := store.NewRedisStatsCache(cfg.RedisAddr, cfg.RedisPassword, statsTTL)
		defer cache.Close()
		if err := cache.Ping(context.Background()); err != nil {
			logger.Warn("stats cache unreachable, continuing", "addr", cfg.RedisAddr, "err", err)
		}
		appCfg.StatsCache = cache
	}

	if cfg.MinioEndpoint != "" {
		objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		appCfg.Media = storage.NewMediaResolver(objects, mediaTTL)
	}

	if cfg.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("failed to init event publisher: %v", err)
		}
		defer publisher.Close()
		appCfg.Events = publisher
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	alerter := security.NewAuditAlerter(cfg.RedisAddr, cfg.RedisPassword, "")
	defer alerter.Close()

	httpServer := server.New(server.Config{
		App:            appCore,
		Metrics:        collector,
		Gatherer:       reg,
		CORSOrigins:    cfg.CORSOrigins,
		CookieSecure:   cfg.SecureCookies(),
		TrustedProxies: trusted,
		Alerter:        alerter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("review server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}
