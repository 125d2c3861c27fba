package services

import (
	"time"

	"go.uber.org/zap"

	"editorial-desk/config"
	"editorial-desk/providers"
	"editorial-desk/storage"
)

// Options are the collaborators of the engine. Archiver, Metrics and Now are optional.
type Options struct {
	Config   *config.Config
	Store    storage.Store
	Mailer   providers.Mailer
	Locker   storage.Locker
	Archiver storage.Archiver
	Logger   *zap.Logger
	Metrics  *Metrics
	Now      func() time.Time
}

// Engine wires the workflow services around one store, mailer and clock.
type Engine struct {
	Auditor   *Auditor
	Notifier  *Notifier
	Deadlines *DeadlineService
	Events    *EventMapper
	Lifecycle *LifecycleService
	Jobs      *JobRunner
}

// NewEngine builds all services.
func NewEngine(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Locker == nil {
		opts.Locker = storage.NewLocalLocker()
	}

	auditor := &Auditor{Store: opts.Store, Logger: opts.Logger.Named("audit"), Now: opts.Now}
	notifier := &Notifier{
		Store:   opts.Store,
		Mailer:  opts.Mailer,
		Logger:  opts.Logger.Named("notifier"),
		Metrics: opts.Metrics,
		Now:     opts.Now,
	}
	deadlines := &DeadlineService{
		Config:   opts.Config,
		Store:    opts.Store,
		Notifier: notifier,
		Auditor:  auditor,
		Logger:   opts.Logger.Named("deadlines"),
		Metrics:  opts.Metrics,
		Now:      opts.Now,
	}
	events := &EventMapper{
		Store:    opts.Store,
		Mailer:   opts.Mailer,
		Notifier: notifier,
		Logger:   opts.Logger.Named("events"),
		Metrics:  opts.Metrics,
	}

	return &Engine{
		Auditor:   auditor,
		Notifier:  notifier,
		Deadlines: deadlines,
		Events:    events,
		Lifecycle: &LifecycleService{
			Config:    opts.Config,
			Store:     opts.Store,
			Deadlines: deadlines,
			Events:    events,
			Auditor:   auditor,
			Logger:    opts.Logger.Named("lifecycle"),
			Now:       opts.Now,
		},
		Jobs: &JobRunner{
			Config:    opts.Config,
			Store:     opts.Store,
			Deadlines: deadlines,
			Events:    events,
			Auditor:   auditor,
			Archiver:  opts.Archiver,
			Locker:    opts.Locker,
			Logger:    opts.Logger.Named("jobs"),
			Metrics:   opts.Metrics,
			Now:       opts.Now,
		},
	}
}
