package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amankumarsingh77/transcodebot/internal/config"
	"github.com/amankumarsingh77/transcodebot/internal/jobs/delivery"
	jobsRepository "github.com/amankumarsingh77/transcodebot/internal/jobs/repository"
	"github.com/amankumarsingh77/transcodebot/internal/jobs/scheduler"
	"github.com/amankumarsingh77/transcodebot/internal/jobs/tracker"
	"github.com/amankumarsingh77/transcodebot/internal/pipeline"
	platformRepository "github.com/amankumarsingh77/transcodebot/internal/platform/repository"
	"github.com/amankumarsingh77/transcodebot/internal/server"
	"github.com/amankumarsingh77/transcodebot/internal/transcoder"
	"github.com/amankumarsingh77/transcodebot/internal/workspace"
	"github.com/amankumarsingh77/transcodebot/pkg/db/aws"
	clientRedis "github.com/amankumarsingh77/transcodebot/pkg/db/redis"
	"github.com/amankumarsingh77/transcodebot/pkg/logger"
)

func main() {
	configFile := "config.yml"
	if v := os.Getenv("CONFIG_FILE"); v != "" {
		configFile = v
	}
	cfgFile, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("loadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("parseConfig: %v", err)
	}

	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	redisClient, err := clientRedis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to redis: %s", err)
	}
	appLogger.Infof("redis connected")

	workspaces, err := workspace.NewManager(cfg, appLogger)
	if err != nil {
		// An unusable workspace root is a startup failure, not a per-job one.
		appLogger.Fatalf("workspace root: %s", err)
	}

	s3Client, err := aws.NewAWSClient(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
	if err != nil {
		appLogger.Warnf("s3 unavailable, s3 sources disabled: %s", err)
		s3Client = nil
	}

	recordRepo := jobsRepository.NewJobRedisRepo(redisClient, cfg)
	jobTracker := tracker.NewTracker(appLogger, recordRepo)
	platformClient := platformRepository.NewRedisBridge(redisClient, cfg, appLogger)
	adapter := transcoder.NewFFmpegAdapter(cfg, appLogger, s3Client)
	dispatcher := delivery.NewDispatcher(cfg, appLogger, platformClient, workspaces, recordRepo, jobTracker)
	sched := scheduler.NewScheduler(cfg, appLogger, jobTracker, adapter, workspaces, dispatcher.Dispatch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("shutting down...")
		cancel()
	}()

	go func() {
		p := pipeline.NewPipeline(cfg, appLogger, sched, platformClient)
		if err := p.Run(ctx); err != nil {
			appLogger.Errorf("pipeline stopped: %v", err)
		}
	}()

	s := server.NewServer(cfg, sched, workspaces, appLogger)
	if err := s.Run(); err != nil {
		appLogger.Errorf("server stopped: %v", err)
	}
	cancel()
}
