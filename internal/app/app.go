package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/marks/internal/config"
	"github.com/MrSnakeDoc/marks/internal/datastore"
	"github.com/MrSnakeDoc/marks/internal/httpserver"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/index"
	"github.com/MrSnakeDoc/marks/internal/library"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/redis"
	"github.com/MrSnakeDoc/marks/internal/scheduler"
	"github.com/MrSnakeDoc/marks/internal/search"
	redisstore "github.com/MrSnakeDoc/marks/internal/store/redis"
	"github.com/MrSnakeDoc/marks/internal/utils"
	"github.com/MrSnakeDoc/marks/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	memIndex    *index.MemoryIndex
	reloader    *scheduler.DatastoreReloader
}

// New wires every component from cfg. Redis is optional: when it is not
// configured or cannot be reached, marks runs from the datastore alone.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loggerClient := logger.NewWithOptions(logger.Options{
		Level:      cfg.LogLevel,
		Pretty:     cfg.PrettyLog,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	loggerClient.Debugf("cfg: %+v", cfg.Redacted())

	memIndex := index.NewMemoryIndex()
	store := datastore.New(cfg.DatastoreFile, cfg.LockTimeout, loggerClient.With(logger.String("component", "datastore")))

	redisClient := connectRedis(ctx, cfg, loggerClient)

	// nil interfaces, not typed nils, when redis is off
	var (
		libMirror    library.Mirror
		reloadMirror scheduler.Mirror
		tagClouds    deps.TagCloudCache
	)
	if redisClient != nil {
		mirror := redisstore.NewStore(redisClient)
		libMirror, reloadMirror, tagClouds = mirror, mirror, mirror

		// Serve something while the datastore is missing or being restored
		syncer := scheduler.NewRedisSyncer(mirror, memIndex, loggerClient)
		if err := syncer.Sync(ctx); err != nil {
			loggerClient.Warn("failed to sync from redis on startup, will load from datastore",
				logger.Error(err))
		}
	}

	reloadTrigger := make(chan struct{}, 1)
	reloader := scheduler.NewDatastoreReloader(
		store,
		reloadMirror,
		memIndex,
		loggerClient.With(logger.String("component", "reloader")),
		cfg.ReloadInterval,
		cfg.WatchDatastore,
		reloadTrigger,
	)

	engine := search.NewEngine(func() search.Collection { return memIndex.Snapshot() }, cfg.TagSeparator, cfg.DefaultPerPage)
	lib := library.NewService(store, memIndex, libMirror, cfg.TagSeparator, loggerClient.With(logger.String("component", "library")))

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		APISecret:       cfg.APISecret,
		DatastoreFile:   cfg.DatastoreFile,
		RedisClient:     redisClient,
		TagClouds:       tagClouds,
		TagCloudTTL:     cfg.TagCloudTTL,
		MemoryIndex:     memIndex,
		Engine:          engine,
		Library:         lib,
		ReloadTrigger:   reloadTrigger,
		RateLimitBurst:  cfg.RateLimitBurst,
		RateLimitRefill: cfg.RateLimitRefill,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		redisClient: redisClient,
		memIndex:    memIndex,
		reloader:    reloader,
	}, nil
}

func connectRedis(ctx context.Context, cfg *config.Config, log logger.Logger) *goredis.Client {
	client, err := redis.Connect(ctx, redis.Options{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, log)
	switch {
	case errors.Is(err, redis.ErrDisabled):
		log.Info("redis not configured, mirror and tag cloud cache disabled")
		return nil
	case err != nil:
		log.Error("failed to connect to redis, continuing without it", logger.Error(err))
		return nil
	}
	log.Info("redis initialized successfully", logger.String("addr", cfg.RedisAddr))
	return client
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM is received or a
// component fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting marks %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load the datastore (fatal when broken) and start periodic/watch reloads
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start datastore reloader: %w", err)
	}
	a.logger.Info("datastore reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval),
		logger.Bool("watch", a.cfg.WatchDatastore))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("⏳ Shutting down gracefully...")
		a.reloader.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return nil
	})

	err := g.Wait()

	if a.redisClient != nil {
		utils.MustClose(a.redisClient, a.logger, "redis")
	}

	a.logger.Info("✅ marks stopped cleanly",
		logger.Duration("uptime", a.server.Uptime()),
		logger.Int("bookmarks", a.memIndex.Count()))
	_ = a.logger.Sync()
	return err
}
