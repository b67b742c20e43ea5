package main

import (
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/poyrazK/keygate/internal/adapters/api"
	"github.com/poyrazK/keygate/internal/adapters/cache"
	"github.com/poyrazK/keygate/internal/adapters/notifier"
	"github.com/poyrazK/keygate/internal/adapters/repository"
	"github.com/poyrazK/keygate/internal/config"
	"github.com/poyrazK/keygate/internal/core/ports"
	"github.com/poyrazK/keygate/internal/core/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("unable to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Warn("could not ping database", "error", err)
	}

	repo := repository.NewPostgresRepository(db)

	var licCache ports.LicenseCache
	if cfg.RedisAddr != "" {
		licCache = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, logger)
		logger.Info("license cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	}

	var piracyNotifier ports.PiracyNotifier
	if cfg.PiracyWebhookURL != "" {
		piracyNotifier = notifier.NewWebhookNotifier(cfg.PiracyWebhookURL)
		logger.Info("piracy alerting enabled")
	}

	svc := services.NewLicenseService(repo, piracyNotifier, licCache, logger)

	rl := api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stop := make(chan struct{})
	defer close(stop)
	rl.StartCleanup(stop)

	handler := api.NewAPIHandler(svc, repo, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, rl)

	logger.Info("license server listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
