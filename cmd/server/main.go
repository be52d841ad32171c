package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/fonoterapia-backend/internal/config"
	"github.com/AnshRaj112/fonoterapia-backend/internal/database"
	"github.com/AnshRaj112/fonoterapia-backend/internal/handlers"
	"github.com/AnshRaj112/fonoterapia-backend/internal/middleware"
	"github.com/AnshRaj112/fonoterapia-backend/internal/routes"
	"github.com/AnshRaj112/fonoterapia-backend/internal/services"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}
	cfg := config.Load()
	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Redis is optional: without it progress events stay in this process
	// and only the in-memory rate limiters run.
	var (
		redisClient *redis.Client
		broker      services.ProgressBroker
	)
	if cfg.RedisURI != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURI)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		redisBroker := services.NewRedisBroker(redisClient)
		redisBroker.Start(ctx)
		broker = redisBroker
	} else {
		slog.Warn("REDIS_URI not set; progress events are delivered in-process only")
		broker = services.NewLocalBroker()
	}

	h := handlers.New(
		services.NewUserService(store, services.BcryptCredentials{}),
		services.NewTherapyService(store, broker),
		services.NewProgressService(store),
		broker,
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(cfg.TrustedProxies))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit → LoginRateLimit.
	// Non-production: Redis-based rate limit only, when Redis is configured.
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(hostname(cfg.Host), cfg.TrustedProxies, ctx.Done()) {
			r.Use(mw)
		}
		slog.Info("✅ Production security enabled (security headers, per-IP + login rate limiting)")
	} else if redisClient != nil {
		r.Use(middleware.RedisRateLimit(redisClient, cfg.TrustedProxies))
	}

	routes.SetupRoutes(r, h, store)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("🚀 Fonoterapia backend running", "port", cfg.Port, "env", cfg.Environment, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func openStore(ctx context.Context, cfg *config.Config) (services.Store, error) {
	if cfg.StoreDriver == "memory" {
		slog.Warn("Using in-memory store; data is lost on restart")
		return database.NewMemoryStore(), nil
	}

	slog.Info("Connecting to PostgreSQL...")
	db, err := database.OpenPostgres(ctx, cfg.PostgresURI, database.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MinIdleConns: cfg.DBMinIdleConns,
	})
	if err != nil {
		return nil, err
	}
	return database.NewPostgresStore(db, cfg.DBAcquireTimeout), nil
}

// hostname extracts the bare host from HOST (e.g. https://api.example.com).
func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return u.Hostname()
}
