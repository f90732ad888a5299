// Package main запускает HTTP-сервер интернет-магазина.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/auth"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/config"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/events"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/handler"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/idempotency"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/middleware"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/payment"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/repository"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/service"
)

const (
	idempotencyTTL       = 24 * time.Hour
	relayInterval        = time.Second
	relayBatchSize       = 100
	tokenCleanupInterval = time.Hour
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	if cfg.PaymentGatewayURL == "" {
		sugar.Warn("payment gateway is not configured, payment verification will fail")
	}
	paymentClient := payment.NewClient(cfg.PaymentGatewayURL, cfg.PaymentAPISecret, cfg.PaymentTimeout)

	if cfg.JWTSecret == "" {
		sugar.Warn("JWT_SECRET is empty, using a random key; tokens will not survive a restart")
	}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	svc := service.NewService(repo, paymentClient, tokens, cfg.RefreshTokenTTL, logger.Named("service"))

	health := map[string]handler.HealthChecker{"postgres": repo}

	var guard *idempotency.Guard
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		guard = idempotency.NewGuard(rdb, idempotencyTTL)
		defer guard.Close()
		health["redis"] = guard
	}

	var publisher events.Publisher = events.NewLogPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer publisher.Close()

	relay := events.NewRelay(repo, publisher, logger, relayInterval, relayBatchSize)

	h := handler.NewHandler(svc, logger, middleware.NewAuthMiddleware(tokens), handler.Options{
		CookieSecure: cfg.CookieSecure,
		Idempotency:  guard,
		AuthLimiter:  middleware.NewRateLimiter(rate.Limit(5), 10, 10*time.Minute),
		Health:       health,
	})

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Публикация событий заказов из outbox
	g.Go(func() error {
		relay.Run(ctx)
		return nil
	})

	// Очистка просроченных refresh-токенов
	g.Go(func() error {
		ticker := time.NewTicker(tokenCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n, err := repo.DeleteExpiredRefreshTokens(ctx)
				if err != nil {
					sugar.Warnw("refresh token cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					sugar.Infow("expired refresh tokens removed", "count", n)
				}
			}
		}
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting shop server", "addr", cfg.RunAddress, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
