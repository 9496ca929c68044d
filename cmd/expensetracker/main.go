// Package main запускает HTTP-сервер панели учёта расходов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/expense-tracker/internal/cache"
	"github.com/mmeshcher/expense-tracker/internal/config"
	"github.com/mmeshcher/expense-tracker/internal/handler"
	"github.com/mmeshcher/expense-tracker/internal/middleware"
	"github.com/mmeshcher/expense-tracker/internal/repository"
	"github.com/mmeshcher/expense-tracker/internal/service"
	"github.com/mmeshcher/expense-tracker/internal/storage"
	"github.com/mmeshcher/expense-tracker/internal/uploader"
	"github.com/mmeshcher/expense-tracker/internal/validation"
	"github.com/mmeshcher/expense-tracker/internal/view"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := godotenv.Load(); err != nil {
		sugar.Debugw("no .env file loaded", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}
	listCache := cache.NewListCache(redisClient, cfg.CacheTTL)

	svc := service.NewService(repo, validation.NewInvoiceValidator(), listCache, logger)
	defer svc.Close()

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := svc.EnsureUser(context.Background(), cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			sugar.Fatalw("seed user error", "error", err.Error())
		}
	}

	resolver := storage.NewResolver(cfg.Bucket, cfg.Region)

	views, err := view.NewEngine(resolver.ReceiptURL)
	if err != nil {
		sugar.Fatalw("template initialization error", "error", err.Error())
	}

	opts := handler.Options{
		Service:        svc,
		Resolver:       resolver,
		Views:          views,
		Logger:         logger,
		Auth:           middleware.NewAuthMiddleware(cfg.AuthSecret, "/login"),
		MaxUploadBytes: cfg.UploadMaxBytes,
	}

	routerOpts := handler.RouterOptions{}

	if cfg.Bucket != "" {
		presigner, err := storage.NewPresigner(storage.Options{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.Region,
			Bucket:          cfg.Bucket,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Insecure:        cfg.S3Insecure,
			MaxBytes:        cfg.UploadMaxBytes,
			URLTTL:          cfg.UploadURLTTL,
		})
		if err != nil {
			sugar.Fatalw("storage initialization error", "error", err.Error())
		}
		opts.Presigner = presigner
		opts.Uploader = uploader.NewClient(presigner, nil)
		routerOpts.ImageSources = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	} else {
		sugar.Warn("AWS_BUCKET_NAME is not set, receipt uploads are disabled")
	}

	h := handler.NewHandler(opts)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(routerOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting expense tracker server", "addr", cfg.RunAddress)
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
