// Package app wires configuration, storage and services for the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"clubhub/internal/config"
	"clubhub/internal/db"
	"clubhub/internal/http/handlers"
	"clubhub/internal/logger"
	"clubhub/internal/notify"
	"clubhub/internal/passkey"
	"clubhub/internal/rbac"
)

type App struct {
	Config     *config.Config
	Log        logger.Logger
	DB         *gorm.DB
	Redis      *redis.Client
	Deps       *handlers.Deps
	Dispatcher *notify.Dispatcher
}

// New loads configuration, initializes logging and connects to the database.
// Passing migrate runs AutoMigrate before returning.
func New(ctx context.Context, migrate bool) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitLogger(&cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log, err := logger.GetLogger()
	if err != nil {
		return nil, err
	}

	gdb, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Info("connected to ", cfg.Database.Type, " database")
	if migrate {
		if err := db.AutoMigrate(gdb); err != nil {
			_ = db.Close(gdb)
			return nil, err
		}
		log.Info("schema migrated")
	}

	a := &App{Config: cfg, Log: log, DB: gdb}

	store := passkey.NewGormStore(gdb)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		store = passkey.NewRedisStore(a.Redis)
		log.Info("passkey sessions stored in redis")
	}

	passkeys, err := passkey.NewService(cfg.WebAuthn, gdb, store)
	if err != nil {
		a.Close()
		return nil, err
	}

	mailer := notify.NewMailer(cfg.SMTP, log)
	push := notify.NewNopPushSender()
	if cfg.PushEnabled() {
		push = notify.NewWebPushSender(cfg.Push)
	} else {
		log.Warn("VAPID keys not set, web push disabled")
	}

	a.Deps = &handlers.Deps{
		DB:       gdb,
		Config:   cfg,
		Log:      log,
		Mailer:   mailer,
		Passkeys: passkeys,
		Checker:  rbac.Checker{DB: gdb},
	}
	a.Dispatcher = notify.NewDispatcher(gdb, push, mailer, log, cfg.HTTP.PublicURL)
	return a, nil
}

// Close releases the database and redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn("failed to close redis: ", err)
		}
	}
	if err := db.Close(a.DB); err != nil {
		a.Log.Warn("failed to close database: ", err)
	}
}
