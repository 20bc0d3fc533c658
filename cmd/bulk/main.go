package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/phambaophuc/smartmine-client/internal/config"
	"github.com/phambaophuc/smartmine-client/internal/logging"
	"github.com/phambaophuc/smartmine-client/internal/services/cache"
	"github.com/phambaophuc/smartmine-client/internal/services/storage"
	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
	"github.com/phambaophuc/smartmine-client/pkg/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	sourceDir := flag.String("src", cfg.Batch.SourceDir, "directory with images to process")
	destDir := flag.String("dst", cfg.Batch.DestDir, "output directory (default ~/Downloads)")
	serviceName := flag.String("service", cfg.Batch.Service, "Smartmine service to run")
	policyName := flag.String("policy", cfg.Batch.Policy, "abort or continue on a failed image")
	useCache := flag.Bool("cache", false, "cache dimension checks in Redis")
	mirror := flag.Bool("mirror", false, "upload results to Supabase after the batch")
	flag.Parse()

	baseLogger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer baseLogger.Sync()
	logger := logging.WithOperation(baseLogger, "bulk_process", uuid.New().String())

	if *sourceDir == "" {
		logger.Fatal("Source directory is required (-src or SOURCE_DIR)")
	}
	service, err := smartmine.ParseServiceName(*serviceName)
	if err != nil {
		logger.Fatal("Invalid service", zap.Error(err))
	}
	policy, err := smartmine.ParseBatchPolicy(*policyName)
	if err != nil {
		logger.Fatal("Invalid batch policy", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var api smartmine.Transport = transport.New(cfg.Smartmine.APIURL,
		transport.WithDimensionsURL(cfg.Smartmine.DimensionsURL),
		transport.WithTimeout(cfg.Smartmine.HTTPTimeout),
		transport.WithLogger(baseLogger))
	if *useCache {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		api = cache.NewCachingTransport(api, cache.NewRedisCache(redisClient), cfg.Redis.DimensionCacheTTL, logger)
	}

	client := smartmine.NewClient(api,
		smartmine.WithLogger(logger),
		smartmine.WithPollInterval(cfg.Smartmine.PollInterval),
		smartmine.WithMaxPollAttempts(cfg.Smartmine.MaxPollAttempts),
		smartmine.WithRestoreResolution(cfg.Smartmine.RestoreResolution),
		smartmine.WithTempDir(cfg.Smartmine.TempDir),
		smartmine.WithBatchPolicy(policy),
		smartmine.WithProgress(func(p smartmine.BatchProgress) {
			logger.Info("Progress",
				zap.Int("done", p.Done),
				zap.Int("total", p.Total),
				zap.String("source", p.Source),
				zap.Bool("failed", p.Err != nil))
		}))

	creds := smartmine.Credentials{Username: cfg.Smartmine.Username, Password: cfg.Smartmine.Password}
	report, err := client.BulkProcessImages(ctx, creds, service, *sourceDir, *destDir)
	if report != nil {
		logger.Info("Batch finished",
			zap.String("service", service.String()),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed))
	}
	if *mirror && report != nil {
		if mirrorErr := mirrorResults(ctx, cfg, logger, report); mirrorErr != nil {
			logger.Error("Mirroring failed", zap.Error(mirrorErr))
			os.Exit(1)
		}
	}
	if err != nil {
		logger.Error("Batch failed", zap.Error(err))
		os.Exit(1)
	}
}

// mirrorResults uploads the outputs of the successful files to Supabase.
func mirrorResults(ctx context.Context, cfg *config.Config, logger *zap.Logger, report *smartmine.BatchReport) error {
	if !cfg.StorageEnabled() {
		return errors.New("mirroring requires SUPABASE_URL, SUPABASE_KEY and SUPABASE_BUCKET")
	}

	var outputs []string
	for _, r := range report.Results {
		if r.Err == nil {
			outputs = append(outputs, r.Destination)
		}
	}

	urls, err := storage.NewStorageService(cfg.Supabase, logger).MirrorFiles(ctx, outputs)
	for i, url := range urls {
		if url != "" {
			logger.Info("Result mirrored", zap.String("file", outputs[i]), zap.String("url", url))
		}
	}
	return err
}
