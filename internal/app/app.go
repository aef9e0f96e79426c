package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/bitmark/internal/background"
	"github.com/MrSnakeDoc/bitmark/internal/config"
	"github.com/MrSnakeDoc/bitmark/internal/feishu"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
	"github.com/MrSnakeDoc/bitmark/internal/redis"
	"github.com/MrSnakeDoc/bitmark/internal/scheduler"
	"github.com/MrSnakeDoc/bitmark/internal/store"
	"github.com/MrSnakeDoc/bitmark/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/bitmark/internal/store/redis"
	"github.com/MrSnakeDoc/bitmark/internal/syncer"
	"github.com/MrSnakeDoc/bitmark/internal/version"
)

type App struct {
	cfg              *config.Config
	logger           logger.Logger
	server           *httpserver.Server
	redisClient      *goredis.Client
	service          *background.Service
	resyncer         *scheduler.Resyncer
	janitor          *scheduler.Janitor
	settingsReloader *scheduler.SettingsReloader
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	backend, redisClient := openBackend(cfg, loggerClient)
	manager := store.NewManager(backend, loggerClient, time.Now)

	client := feishu.NewClient(feishu.Config{
		BaseURL:        cfg.FeishuBaseURL,
		Timeout:        cfg.FeishuTimeout,
		SafetyMargin:   cfg.TokenSafetyMargin,
		DirectTokenTTL: cfg.DirectTokenTTL,
	}, feishu.NewTokenCache(), loggerClient)

	coord := syncer.NewCoordinator(manager, client, syncer.Config{
		RetryBase:      cfg.RetryBaseDelay,
		RetryMax:       cfg.RetryMaxDelay,
		RemoteTimeout:  cfg.CaptureTimeout,
		FieldsCacheTTL: cfg.FieldsCacheTTL,
	}, loggerClient)

	service := background.New(coord, manager, client.Tokens(), background.Options{
		Version: version.Version,
	}, loggerClient)

	// Create manual trigger channels
	resyncTrigger := make(chan struct{}, 1)

	resyncer := scheduler.NewResyncer(
		service,
		loggerClient,
		cfg.ResyncInterval,
		resyncTrigger,
	)

	janitor := scheduler.NewJanitor(
		manager,
		loggerClient,
		cfg.CleanupInterval,
		cfg.HistoryRetention,
	)

	// Initialize settings reloader (if a settings file is configured)
	var settingsReloader *scheduler.SettingsReloader
	var settingsReloadTrigger chan struct{}
	if cfg.SettingsFile != "" {
		loggerClient.Info("settings file configured, initializing settings reloader",
			logger.String("file", cfg.SettingsFile))
		settingsReloadTrigger = make(chan struct{}, 1)
		settingsReloader = scheduler.NewSettingsReloader(
			cfg.SettingsFile,
			service,
			loggerClient,
			cfg.SettingsReloadInterval,
			settingsReloadTrigger,
		)
	} else {
		loggerClient.Info("settings file not configured, settings come from the API only")
	}

	// Dependencies passed to routes.
	d := deps.Deps{
		Logger:                loggerClient,
		StartTime:             time.Now(),
		Version:               version.Version,
		Commit:                version.Commit,
		BuildDate:             version.BuildDate,
		GoVersion:             version.GoVersion,
		TimeNow:               time.Now,
		AllowedOrigins:        cfg.AllowedOrigins,
		AllowedHosts:          cfg.AllowedHosts,
		AllowedCIDRS:          cfg.AllowedCIDRS,
		TrustProxy:            cfg.TrustProxy,
		RateBurst:             cfg.RateBurst,
		RatePerMinute:         cfg.RatePerMinute,
		RequestTimeout:        cfg.RequestTimeout,
		StoreBackend:          cfg.StoreBackend,
		Service:               service,
		ResyncTrigger:         resyncTrigger,
		SettingsReloadTrigger: settingsReloadTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:              cfg,
		logger:           loggerClient,
		server:           server,
		redisClient:      redisClient,
		service:          service,
		resyncer:         resyncer,
		janitor:          janitor,
		settingsReloader: settingsReloader,
	}
}

// openBackend picks the key/value backend of the local store. Redis is
// connected early so a missing server fails fast.
func openBackend(cfg *config.Config, loggerClient logger.Logger) (store.Backend, *goredis.Client) {
	if cfg.StoreBackend == config.StoreMemory {
		loggerClient.Warn("using in-memory store, history and settings are lost on restart")
		return memory.New(), nil
	}

	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	return redisstore.NewStore(redisClient), redisClient
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Bitmark v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Bitmark %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Write default settings on first run
	if err := a.service.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	// Apply the settings file (if enabled) before anything syncs
	if a.settingsReloader != nil {
		if err := a.settingsReloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start settings reloader: %w", err)
		}
		a.logger.Info("settings reloader started",
			logger.Duration("interval", a.cfg.SettingsReloadInterval))
	}

	// Start resyncer (replays captures kept locally)
	if err := a.resyncer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start resyncer: %w", err)
	}
	a.logger.Info("resyncer started",
		logger.Duration("interval", a.cfg.ResyncInterval))

	// Start janitor
	if err := a.janitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start janitor: %w", err)
	}
	a.logger.Info("janitor started",
		logger.Duration("interval", a.cfg.CleanupInterval),
		logger.Duration("retention", a.cfg.HistoryRetention))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if a.settingsReloader != nil {
		a.settingsReloader.Stop()
	}
	a.resyncer.Stop()
	a.janitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Bitmark stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
