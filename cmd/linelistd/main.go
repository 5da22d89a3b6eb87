package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/linetrace/linelist-tracker/internal/async"
	"github.com/linetrace/linelist-tracker/internal/backend"
	"github.com/linetrace/linelist-tracker/internal/common"
	"github.com/linetrace/linelist-tracker/internal/extraction"
	"github.com/linetrace/linelist-tracker/internal/grammar"
	"github.com/linetrace/linelist-tracker/internal/merge"
	"github.com/linetrace/linelist-tracker/internal/pipeline"
	"github.com/linetrace/linelist-tracker/internal/profiles"
	"github.com/linetrace/linelist-tracker/internal/repository"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if path := os.Getenv("LINELIST_CONFIG"); path != "" {
		if err := common.LoadConfigFile(cfg, path); err != nil {
			logger.Error("failed to load config file", "path", path, "error", err)
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr,
		Password: cfg.Store.RedisPassword,
		DB:       cfg.Store.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable", "addr", cfg.Store.RedisAddr, "error", err)
		os.Exit(1)
	}

	db, err := repository.OpenHistoryDB(cfg.Store.HistoryPath)
	if err != nil {
		logger.Error("failed to open history db", "path", cfg.Store.HistoryPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	history := repository.NewHistoryRepository(db, logger)
	if err := history.Init(ctx); err != nil {
		logger.Error("failed to init history schema", "error", err)
		os.Exit(1)
	}

	profileStore := profiles.NewStore(rdb)
	resolver := profiles.NewResolver(profileStore, cfg.Store.ProfileScope, logger)
	if err := resolver.LoadPersisted(ctx); err != nil {
		logger.Error("failed to load persisted profile", "error", err)
		os.Exit(1)
	}
	if _, err := resolver.Active(); errors.Is(err, profiles.ErrNoneSelected) {
		logger.Info("no persisted format profile; selection required before extraction")
	}

	tokens := backend.NewStaticTokenSource(cfg.Backend.Token)
	client := backend.NewClient(cfg.Backend, tokens, logger)
	submitter := extraction.NewSubmitter(client, grammar.NewEngine(), logger)
	merger := merge.NewMerger(logger)
	processor := pipeline.NewProcessor(resolver, submitter, client, cfg.Poll, merger, history, logger)

	queue := async.NewExtractionQueue(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithRunTimeout(cfg.Backend.UploadTimeout+time.Duration(cfg.Poll.MaxAttempts)*cfg.Poll.Interval),
	)

	logger.Info("linelistd ready",
		"backend", cfg.Backend.BaseURL,
		"workers", cfg.Queue.Workers,
		"history", cfg.Store.HistoryPath,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	queue.Shutdown(context.Background())
}
