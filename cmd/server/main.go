package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"forexhub/internal/config"
	"forexhub/internal/metrics"
	"forexhub/internal/payment"
	"forexhub/internal/payment/mpesa"
	paymentservice "forexhub/internal/payment/service"
	"forexhub/internal/payment/store"
	paymenthttp "forexhub/internal/payment/transport/http"
	planrepository "forexhub/internal/plan/repository"
	planservice "forexhub/internal/plan/service"
	planhttp "forexhub/internal/plan/transport/http"
	subscriptionrepository "forexhub/internal/subscription/repository"
	subscriptionservice "forexhub/internal/subscription/service"
	subscriptionhttp "forexhub/internal/subscription/transport/http"
	tokenrepository "forexhub/internal/token/repository"
	tutorialrepository "forexhub/internal/tutorial/repository"
	tutorialservice "forexhub/internal/tutorial/service"
	tutorialhttp "forexhub/internal/tutorial/transport/http"
	userrepository "forexhub/internal/user/repository"
	userservice "forexhub/internal/user/service"
	userhttp "forexhub/internal/user/transport/http"
	"forexhub/pkg/db"
	"forexhub/pkg/middleware"
)

var server *http.Server

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close()
	logger.Info("database connected")

	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- layers ---
	userRepo := userrepository.NewPostgresUserRepository(database)
	refreshTokenRepo := tokenrepository.NewRefreshTokenRepository(database)
	userService := userservice.NewUserService(userRepo, refreshTokenRepo, userservice.NewJWTManager(cfg.JWTSecret, cfg.AccessTTL))
	userHandler := userhttp.NewHandler(userService, logger)

	subRepo := subscriptionrepository.NewSubscriptionRepository(database)
	subService := subscriptionservice.NewService(subRepo, logger)
	subHandler := subscriptionhttp.NewSubscriptionHandler(subService, logger)

	planService := planservice.NewService(planrepository.NewPostgresPlanRepository(database), logger)
	planHandler := planhttp.NewHandler(planService, logger)

	tutorialService := tutorialservice.NewService(tutorialrepository.NewPostgresTutorialRepository(database), subService)
	tutorialHandler := tutorialhttp.NewHandler(tutorialService, logger)

	pendingStore, closeStore := newPendingStore(ctx, cfg, database, logger)
	defer closeStore()

	mpesaClient := mpesa.NewClient(mpesa.Config{
		BaseURL:         cfg.Mpesa.BaseURL,
		ConsumerKey:     cfg.Mpesa.ConsumerKey,
		ConsumerSecret:  cfg.Mpesa.ConsumerSecret,
		ShortCode:       cfg.Mpesa.ShortCode,
		Passkey:         cfg.Mpesa.Passkey,
		CallbackURL:     cfg.Mpesa.CallbackURL,
		TransactionType: cfg.Mpesa.TransactionType,
		ProxyAddr:       cfg.Mpesa.ProxyAddr,
		Timeout:         cfg.Mpesa.Timeout,
	}, logger)

	paymentService := paymentservice.NewService(pendingStore, mpesaClient, subService, cfg.Mpesa.CountryCode, logger)
	paymentHandler := paymenthttp.NewHandler(paymentService, planService, logger)

	startPendingSweeper(ctx, paymentService, cfg.SweepInterval, cfg.PendingTTL, logger)

	// --- router ---
	r := chi.NewRouter()
	r.Use(middleware.TraceID(logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	r.Group(func(ar chi.Router) {
		ar.Use(authLimiter.Middleware)
		ar.Use(middleware.ValidateRequest)
		ar.Post("/auth/register", userHandler.Register)
		ar.Post("/auth/login", userHandler.Login)
		ar.Post("/auth/refresh", userHandler.Refresh)
	})

	// public catalog, subscribers see more
	r.Get("/api/plans", planHandler.List)
	r.Group(func(or chi.Router) {
		or.Use(middleware.OptionalJWTAuth(cfg.JWTSecret))
		or.Get("/api/tutorials", tutorialHandler.List)
		or.Get("/api/tutorials/{id}", tutorialHandler.Get)
	})

	// called by the gateway; always acknowledged
	r.Post("/api/payments/mpesa/callback", paymentHandler.Callback)
	r.Post("/api/payments/mpesa/timeout", paymentHandler.Timeout)

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.JWTAuth(cfg.JWTSecret))
		pr.Get("/auth/me", userHandler.Me)
		pr.Get("/api/subscriptions/me", subHandler.Me)

		pr.With(middleware.ValidateRequest).Post("/api/payments/stk", paymentHandler.Initiate)

		pr.With(middleware.ValidateRequest).Post("/api/plans", planHandler.Create)
		pr.With(middleware.ValidateRequest).Put("/api/plans/{kind}", planHandler.Edit)
		pr.Delete("/api/plans/{kind}", planHandler.Delete)
		pr.Post("/api/plans/{kind}/toggle", planHandler.Toggle)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":        "ok",
			"mpesa_circuit": mpesaClient.CircuitState().String(),
		})
	})
	r.With(middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPassword)).Handle("/metrics", promhttp.Handler())

	server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received, starting graceful shutdown")
		shutdownServer(logger)
	}()

	logger.Info("server running", "addr", cfg.HTTPAddr, "pending_store", cfg.PendingStore)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// newPendingStore picks the pending payment store from config. Postgres
// settles a confirmation and its subscription in one transaction; memory
// loses confirmed payments on restart and is for local runs only.
func newPendingStore(ctx context.Context, cfg *config.Config, database *sqlx.DB, logger *slog.Logger) (payment.PendingStore, func()) {
	switch cfg.PendingStore {
	case "memory":
		logger.Warn("using in-memory pending payment store, confirmed payments do not survive restarts")
		return store.NewMemory(), func() {}
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		logger.Info("redis connected", "addr", cfg.RedisAddr)

		// unconfirmed keys outlive the sweep horizon so the sweeper sees them
		// first; confirmed ones are persisted
		return store.NewRedis(rdb, 2*cfg.PendingTTL), func() { rdb.Close() }
	default:
		return store.NewPostgres(database, func(tx *sqlx.Tx) store.LedgerWriter {
			return subscriptionrepository.NewTxSubscriptionRepository(tx)
		}), func() {}
	}
}

func shutdownServer(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
