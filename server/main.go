package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phambaophuc/smartmine-client/internal/config"
	"github.com/phambaophuc/smartmine-client/internal/http/handlers"
	"github.com/phambaophuc/smartmine-client/internal/http/middleware"
	"github.com/phambaophuc/smartmine-client/internal/http/routes"
	"github.com/phambaophuc/smartmine-client/internal/logging"
	"github.com/phambaophuc/smartmine-client/internal/services/cache"
	"github.com/phambaophuc/smartmine-client/internal/services/processor"
	"github.com/phambaophuc/smartmine-client/internal/services/queue"
	"github.com/phambaophuc/smartmine-client/internal/services/storage"
	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
	"github.com/phambaophuc/smartmine-client/pkg/transport"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize services
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	api := transport.New(cfg.Smartmine.APIURL,
		transport.WithDimensionsURL(cfg.Smartmine.DimensionsURL),
		transport.WithTimeout(cfg.Smartmine.HTTPTimeout),
		transport.WithLogger(logger))
	cached := cache.NewCachingTransport(api, cache.NewRedisCache(redisClient), cfg.Redis.DimensionCacheTTL, logger)

	creds := smartmine.Credentials{Username: cfg.Smartmine.Username, Password: cfg.Smartmine.Password}
	imageProcessor := processor.NewImageProcessor(cached, creds, cfg.Smartmine.TempDir, logger,
		smartmine.WithPollInterval(cfg.Smartmine.PollInterval),
		smartmine.WithMaxPollAttempts(cfg.Smartmine.MaxPollAttempts))

	jobStore := storage.NewJobStore(redisClient, cfg.Redis.JobStatusTTL)

	checks := map[string]handlers.HealthCheckFunc{
		"smartmine": func(ctx context.Context) string {
			if err := api.HealthCheck(ctx); err != nil {
				return "unhealthy: " + err.Error()
			}
			return "healthy"
		},
		"redis":    jobStore.HealthCheck,
		"supabase": func(ctx context.Context) string { return "not configured" },
		"queue":    func(ctx context.Context) string { return "not configured" },
	}

	var mirror *storage.StorageService
	if cfg.StorageEnabled() {
		mirror = storage.NewStorageService(cfg.Supabase, logger)
		checks["supabase"] = mirror.HealthCheck
	}

	// Optional collaborators are passed as untyped nil when disabled.
	var jobQueue *queue.QueueService
	if mirror != nil {
		jobQueue, err = queue.NewQueueService(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName, imageProcessor, jobStore, mirror, logger)
	} else {
		jobQueue, err = queue.NewQueueService(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName, imageProcessor, jobStore, nil, logger)
	}
	if err != nil {
		logger.Warn("Failed to initialize queue service", zap.Error(err))
		// Continue without queue service for basic functionality
		jobQueue = nil
	} else {
		defer jobQueue.Close()
		checks["queue"] = func(ctx context.Context) string { return jobQueue.HealthCheck() }
		if stats, err := jobQueue.GetQueueStats(); err == nil {
			logger.Info("Queue ready",
				zap.String("queue", stats.Name),
				zap.Int("messages", stats.Messages),
				zap.Int("consumers", stats.Consumers))
		}
	}

	// Initialize handlers
	var imageHandler *handlers.ImageHandler
	if mirror != nil {
		imageHandler = handlers.NewImageHandler(imageProcessor, mirror, logger, cfg.Server.MaxFileSize)
	} else {
		imageHandler = handlers.NewImageHandler(imageProcessor, nil, logger, cfg.Server.MaxFileSize)
	}

	jobRoots := handlers.JobRoots{SourceDir: cfg.Jobs.SourceDir, DestDir: cfg.Jobs.DestDir}
	var jobHandler *handlers.JobHandler
	if jobQueue != nil {
		jobHandler = handlers.NewJobHandler(jobQueue, jobStore, jobRoots, logger)
	} else {
		jobHandler = handlers.NewJobHandler(nil, jobStore, jobRoots, logger)
	}

	var auth gin.HandlerFunc
	if cfg.Auth.Secret != "" {
		auth = middleware.JWTAuth(cfg.Auth.Secret, cfg.Auth.Audience)
	} else {
		logger.Warn("JWT_SECRET not set, gateway routes are unauthenticated")
	}

	healthHandler := handlers.NewHealthHandler(checks)
	if jobQueue != nil {
		healthHandler.WithQueueStats(jobQueue.GetQueueStats)
	}
	router := routes.NewRouter(imageHandler, jobHandler, healthHandler, auth, cfg.Server.MaxFileSize, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Handler:      router.SetupRoutes(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if jobQueue != nil {
		g.Go(func() error {
			return jobQueue.StartWorker(gctx, 1)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited")
}
