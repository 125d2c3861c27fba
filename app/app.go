package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"editorial-desk/config"
	"editorial-desk/providers"
	"editorial-desk/providers/logmail"
	"editorial-desk/providers/relay"
	"editorial-desk/providers/smtp"
	"editorial-desk/services"
	"editorial-desk/storage"
)

// App is the assembled engine plus the resources it owns.
type App struct {
	Config  *config.Config
	Store   storage.Store
	Engine  *services.Engine
	Metrics *services.Metrics

	closers []func() error
}

// New opens the store, picks the mail transport, lock and optional archive, and wires the engine.
// Collectors are registered with reg when it is not nil.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	var locker storage.Locker = storage.NewLocalLocker()
	if cfg.LockRedisURL != "" {
		rl, err := storage.NewRedisLocker(cfg.LockRedisURL, cfg.LockTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		locker = rl
		a.closers = append(a.closers, rl.Close)
		logger.Info("Job locks held in redis")
	}

	var archiver storage.Archiver
	if cfg.ArchiveEnabled() {
		client, err := storage.NewS3Client(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create archive S3 client: %w", err)
		}
		archiver = storage.NewS3Archiver(client, cfg.ArchiveS3Bucket, cfg.ArchiveS3URL)
		logger.Info("Audit logs are archived before cleanup", zap.String("bucket", cfg.ArchiveS3Bucket))
	}

	a.Metrics = services.NewMetrics(reg)
	a.Engine = services.NewEngine(services.Options{
		Config:   cfg,
		Store:    store,
		Mailer:   NewMailer(cfg, logger),
		Locker:   locker,
		Archiver: archiver,
		Logger:   logger,
		Metrics:  a.Metrics,
	})
	return a, nil
}

// OpenStore returns the store selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		return storage.NewMemoryStore(), nil
	case "postgres", "":
		store, err := storage.OpenPostgres(ctx, cfg.DSN(), logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewMailer returns the transport selected by MAIL_PROVIDER; unknown values fall back to logging.
func NewMailer(cfg *config.Config, logger *zap.Logger) providers.Mailer {
	log := logger.Named("mail")
	switch cfg.MailProvider {
	case "smtp":
		return smtp.NewMailer(cfg, log)
	case "relay":
		return relay.NewMailer(cfg, log)
	default:
		return logmail.NewMailer(log)
	}
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
