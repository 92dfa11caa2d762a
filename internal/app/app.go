// Package app assembles the bot: configuration, logging, storage, the
// Telegram adapter and the relay core, plus the hot-reload plumbing that
// keeps them in sync with the config file.
package app

import (
	"context"
	"fmt"
	"time"

	"relaybot/internal/autodelete"
	"relaybot/internal/bot"
	"relaybot/internal/broadcast"
	"relaybot/internal/config"
	"relaybot/internal/content"
	"relaybot/internal/maintenance"
	"relaybot/internal/relay"
	"relaybot/internal/roster"
	"relaybot/internal/runtime/supervisor"
	"relaybot/internal/session"
	"relaybot/internal/storage"
	kit "relaybot/internal/transport"
	"relaybot/internal/transport/telegram"
	logx "relaybot/pkg/logx"
)

// StopReason tags a shutdown for the final log line.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter *telegram.Adapter

	roster  *roster.Roster
	deleter *autodelete.Scheduler
	maint   *maintenance.Service
	bot     *bot.Bot

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logs, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	fail := func(err error) (*App, error) {
		logs.Close()
		return nil, err
	}

	pollTimeout, _ := config.ParseDurationOrDefault(
		"telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fail(err)
	}

	busyTimeout, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return fail(err)
	}

	bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ros, err := roster.Load(bootCtx, store, log.With(logx.String("comp", "roster")))
	if err != nil {
		_ = store.Close()
		return fail(err)
	}
	ros.Seed(bootCtx, cfg.Telegram.AdminSeedIDs)

	router := relay.NewRouter(adapter, ros, store, log.With(logx.String("comp", "relay")))
	engine := broadcast.New(cfg.Broadcast.RatePerSec, log.With(logx.String("comp", "broadcast")))
	deleter := autodelete.New(adapter, log.With(logx.String("comp", "autodelete")))

	mcfg, err := mapMaintenanceConfig(cfg)
	if err != nil {
		_ = store.Close()
		return fail(err)
	}
	maint := maintenance.New(mcfg, store, log.With(logx.String("comp", "maintenance")))
	if err := maint.Validate(); err != nil {
		_ = store.Close()
		return fail(err)
	}

	quiet, _ := config.ParseDurationOrDefault(
		"relay.album_quiet_period", cfg.Relay.AlbumQuietPeriod, 2*time.Second)
	b := bot.New(mapBotConfig(cfg), bot.Deps{
		Adapter:  adapter,
		Sessions: session.New(),
		Roster:   ros,
		Rules:    content.NewStore(store),
		Store:    store,
		Relay:    router,
		Engine:   engine,
		Deleter:  deleter,
		Logger:   log.With(logx.String("comp", "bot")),
	}, quiet)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		store:   store,
		adapter: adapter,
		roster:  ros,
		deleter: deleter,
		maint:   maint,
		bot:     b,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the supervisor context is canceled (fatal error or
// Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.deleter.Start(a.sup.Context())
	if err := a.maint.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("bot.dispatch", func(c context.Context) error {
		return a.bot.DispatchLoop(c, a.updates)
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated config into the live components. Storage
// path, token and cron schedules require a restart; everything else takes
// effect immediately.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(mapLogConfig(cfg))
	a.bot.Apply(mapBotConfig(cfg))

	quiet, _ := config.ParseDurationOrDefault(
		"relay.album_quiet_period", cfg.Relay.AlbumQuietPeriod, 2*time.Second)
	a.bot.Albums().SetQuietPeriod(quiet)
	a.bot.Engine().SetRate(cfg.Broadcast.RatePerSec)

	// Seeding is grant-only; removing an id from the seed list never
	// revokes a runtime grant.
	a.roster.Seed(ctx, cfg.Telegram.AdminSeedIDs)

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops unwind immediately.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("maintenance", 2*time.Second, func(c context.Context) error { a.maint.Stop(c); return nil })
	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("autodelete", 1*time.Second, func(c context.Context) error { a.deleter.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}
