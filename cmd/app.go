package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cratedig/config"
	"cratedig/database"
	"cratedig/logger"
	"cratedig/provider"
	"cratedig/repository"
	"cratedig/services"
)

// app holds everything a command needs and how to release it
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	redis    *redis.Client
	provider *provider.YouTubeClient
	services *services.Services
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		OutputPath: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, db: db}
	repos := repository.New(db)

	if cfg.Redis.Addr != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := repository.ConnectRedis(connectCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis quota store: %w", err)
		}
		a.redis = client
		repos.Quota = repository.NewRedisQuotaRepository(client)
		logger.Info("Quota counters stored in redis", logger.String("addr", cfg.Redis.Addr))
	}

	a.provider = provider.NewYouTubeClientFromConfig(cfg.YouTube, cfg.Recommender, cfg.HTTP.ProviderClient())
	if !a.provider.IsConfigured() {
		logger.Warn("YOUTUBE_API_KEY is not set; only cached searches will succeed")
	}

	a.services = services.New(repos, a.provider, cfg.Recommender)
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("Failed to close redis", logger.ErrorField(err))
		}
	}
	if err := database.ShutdownDB(); err != nil {
		logger.Warn("Failed to close database", logger.ErrorField(err))
	}
	logger.Sync()
}
