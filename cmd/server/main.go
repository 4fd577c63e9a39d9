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

	"github.com/ErlanBelekov/tourbook/config"
	"github.com/ErlanBelekov/tourbook/internal/email"
	"github.com/ErlanBelekov/tourbook/internal/health"
	"github.com/ErlanBelekov/tourbook/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/tourbook/internal/log"
	"github.com/ErlanBelekov/tourbook/internal/metrics"
	"github.com/ErlanBelekov/tourbook/internal/password"
	"github.com/ErlanBelekov/tourbook/internal/payment"
	"github.com/ErlanBelekov/tourbook/internal/ratelimit"
	"github.com/ErlanBelekov/tourbook/internal/scheduler"
	"github.com/ErlanBelekov/tourbook/internal/token"
	httptransport "github.com/ErlanBelekov/tourbook/internal/transport/http"
	"github.com/ErlanBelekov/tourbook/internal/transport/http/handler"
	"github.com/ErlanBelekov/tourbook/internal/transport/http/middleware"
	"github.com/ErlanBelekov/tourbook/internal/transport/http/views"
	"github.com/ErlanBelekov/tourbook/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		stop()
		pool.Close()
		log.Fatalf("migrate: %v", err)
	}

	tmpl, err := views.Templates()
	if err != nil {
		stop()
		pool.Close()
		log.Fatalf("views: %v", err)
	}

	metrics.Register()
	checkerOpts := []health.Option{}

	// Users and auth
	userRepo := postgres.NewUserRepository(pool)
	tokens := token.NewService([]byte(cfg.JWTSecret), cfg.JWTExpiresIn)
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	authUsecase := usecase.NewAuthUsecase(userRepo, tokens, password.NewHasher(password.DefaultCost), sender, logger,
		usecase.WithResetTTL(cfg.PasswordResetTTL))

	cookie := handler.CookieConfig{TTL: cfg.CookieTTL(), Secure: cfg.IsProduction()}
	handlers := httptransport.Handlers{
		Auth:    handler.NewAuthHandler(authUsecase, cookie, cfg.PublicBaseURL, logger),
		Users:   handler.NewUserHandler(authUsecase, logger),
		Booking: handler.NewBookingHandler(payment.NewLocalProvider(), cfg.PublicBaseURL, logger),
		Views:   handler.NewViewHandler(),
	}

	deps := httptransport.RouterDeps{
		Logger:        logger,
		Normalizer:    middleware.NewNormalizer(cfg.Env, logger),
		Authenticator: middleware.NewAuthenticator(tokens, userRepo, logger),
		Templates:     tmpl,
	}

	// Rate limiting
	if cfg.RedisURL != "" {
		limiter, err := ratelimit.NewFromURL(cfg.RedisURL, cfg.RateLimitMax, cfg.RateLimitWindow)
		if err != nil {
			stop()
			pool.Close()
			log.Fatalf("redis: %v", err)
		}
		defer limiter.Close()
		deps.RateLimit = middleware.RateLimit(limiter, logger)
		checkerOpts = append(checkerOpts, health.WithDependency("redis", limiter))
	} else {
		logger.Warn("REDIS_URL not set, rate limiting disabled")
	}

	// Reset-token reaper
	reaper, err := scheduler.NewReaper(userRepo, cfg.ResetReaperSpec, logger)
	if err != nil {
		stop()
		pool.Close()
		log.Fatalf("reaper: %v", err)
	}
	go reaper.Start(ctx)

	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer, checkerOpts...)

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httptransport.NewRouter(deps, handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == config.EnvDevelopment {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
