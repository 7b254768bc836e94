// Package main runs the background worker: the pacer that schedules A/B test
// work and the processor that executes rotations, metrics collection, winner
// checks, and YouTube uploads.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/creatorhub/backend/config"
	"github.com/creatorhub/backend/internal/abtests"
	"github.com/creatorhub/backend/internal/approvals"
	"github.com/creatorhub/backend/internal/files"
	"github.com/creatorhub/backend/internal/integrations"
	"github.com/creatorhub/backend/internal/realtime"
	"github.com/creatorhub/backend/internal/worker"
	"github.com/creatorhub/backend/internal/youtube"
	"github.com/creatorhub/backend/pkg/crypto"
	"github.com/creatorhub/backend/pkg/database"
	"github.com/creatorhub/backend/pkg/queue"
	"github.com/creatorhub/backend/pkg/redis"
	"github.com/creatorhub/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ThumbnailsBucket:     cfg.AWS.ThumbnailsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	tokenCipher, err := crypto.NewTokenCipher(cfg.Google.EncryptionKey)
	if err != nil {
		logger.Fatal("token cipher", zap.Error(err))
	}

	// The worker has no WebSocket clients; events go out through Redis and
	// the API instances fan them out to connected dashboards.
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, nil)

	intRepo := integrations.NewRepository(pool)
	intService := integrations.NewService(intRepo, tokenCipher, cfg.Google, cfg.Server, logger)
	ytClient := youtube.NewClient(intService, logger)
	driveClient := files.NewDriveClient(intService, logger)

	fileRepo := files.NewRepository(pool)
	approvalRepo := approvals.NewRepository(pool)
	testRepo := abtests.NewRepository(pool)

	updater := abtests.NewVideoUpdater(ytClient, s3Client)
	scheduler := abtests.NewScheduler(testRepo, updater, hub, logger)
	selector := abtests.NewWinnerSelector(testRepo, int64(cfg.ABTest.MinImpressions), logger)
	engine := abtests.NewEngine(testRepo, scheduler, selector, hub, logger)
	collector := abtests.NewCollector(testRepo, ytClient, hub, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	pacer := worker.NewPacer(testRepo, jobQueue,
		time.Duration(cfg.ABTest.PacerIntervalSec)*time.Second,
		time.Duration(cfg.ABTest.CollectIntervalMinutes)*time.Minute,
		logger)
	processor := worker.NewProcessor(scheduler, collector, engine, approvalRepo, fileRepo, driveClient, ytClient, s3Client, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go pacer.Run(workerCtx)
	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
