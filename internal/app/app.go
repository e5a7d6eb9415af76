// Package app wires the sift services together: config, logging, storage,
// judge, pipeline, sinks, ingestion server, and maintenance jobs. All
// dependencies are constructed here and passed down explicitly; there are
// no process-wide registries.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sift/internal/config"
	"sift/internal/eventbus"
	"sift/internal/judge"
	"sift/internal/notify"
	"sift/internal/pipeline"
	"sift/internal/ratelimit"
	"sift/internal/rules"
	"sift/internal/server"
	"sift/internal/sinks"
	"sift/internal/storage"
	logx "sift/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	logs *logx.Service
	root logx.Logger
	log  logx.Logger
	bus  eventbus.Bus

	store   storage.Store
	jclient *judge.Client
	batcher *judge.Batcher
	limiter *ratelimit.Limiter
	pipe    *pipeline.Pipeline
	srv     *server.Server

	maint *maintenance

	boundAddr string
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, root := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))
	cfgm.SetValidator(validateConfig)

	bus := eventbus.New()

	storageCfg, err := cfg.BuildStorage()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storageCfg, root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if storageCfg.Driver != "" && storageCfg.Driver != "none" {
		log.Info("storage enabled", logx.String("driver", storageCfg.Driver), logx.String("path", storageCfg.Path))
	}

	clientCfg, err := cfg.BuildJudgeClient()
	if err != nil {
		return nil, err
	}
	jclient := judge.NewClient(clientCfg, root.With(logx.String("comp", "judge")))
	classifier := judge.NewClassifier(jclient, root.With(logx.String("comp", "judge")))

	batcherCfg, err := cfg.BuildBatcher()
	if err != nil {
		return nil, err
	}
	batcher := judge.NewBatcher(batcherCfg, classifier, root.With(logx.String("comp", "batcher")))

	rateCfg, err := cfg.BuildRateLimit()
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(rateCfg)

	engine := rules.NewEngine(cfg.BuildRuleSet(root.With(logx.String("comp", "rules"))))

	dispatcher, err := buildDispatcher(cfg, root)
	if err != nil {
		return nil, err
	}

	pipe := pipeline.New(cfg.BuildPipeline(), engine, limiter, classifier, batcher, dispatcher, bus,
		root.With(logx.String("comp", "pipeline")))

	contacts, err := notify.LoadContacts(cfg.ContactsPath)
	if err != nil {
		log.Warn("contacts load failed", logx.String("path", cfg.ContactsPath), logx.Err(err))
		contacts = notify.Contacts{}
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		logs:    logSvc,
		root:    root,
		log:     log,
		bus:     bus,
		store:   store,
		jclient: jclient,
		batcher: batcher,
		limiter: limiter,
		pipe:    pipe,
	}
	a.srv = server.New(pipe, a, contacts, root)
	a.maint = newMaintenance(store, limiter, storageCfg.Retention, root.With(logx.String("comp", "maintenance")))
	return a, nil
}

// Start launches the ingestion server, the outcome recorder, the config
// watcher, and the maintenance schedule.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()
	if err := a.srv.Start(server.Config{Address: cfg.Server.Address}); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	a.boundAddr = cfg.Server.Address

	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.recordOutcomes(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.followConfig(runCtx)
	}()

	a.maint.start()

	// Warm the judge availability cache off the hot path.
	go a.jclient.Probe(runCtx)

	a.log.Info("sift started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.srv.Stop(ctx)
	a.maint.stop()
	if a.runCancel != nil {
		a.runCancel()
	}
	a.wg.Wait()
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	_ = a.logs.Close()
	return nil
}

// recordOutcomes persists every finalized notification published on the bus.
func (a *App) recordOutcomes(ctx context.Context) {
	events, unsub := a.bus.Subscribe(256)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			oe, isOutcome := e.Data.(pipeline.OutcomeEvent)
			if !isOutcome {
				continue
			}
			wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.store.Append(wctx, storage.Record{
				At:        oe.At,
				Source:    oe.Source,
				Title:     oe.Title,
				Body:      oe.Body,
				Priority:  oe.Priority,
				ActionURL: oe.ActionURL,
				Status:    oe.Status,
				Reason:    oe.Reason,
			})
			cancel()
			if err != nil && err != storage.ErrDisabled {
				a.log.Warn("outcome append failed", logx.String("source", oe.Source), logx.Err(err))
			}
		}
	}
}

// followConfig applies validated config reloads to the running services.
// Server address and storage driver changes require a restart and are only
// logged.
func (a *App) followConfig(ctx context.Context) {
	ch := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok {
				return
			}
			a.applyConfig(cfg)
		}
	}
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if rateCfg, err := cfg.BuildRateLimit(); err == nil {
		a.limiter.Apply(rateCfg)
	}
	if batcherCfg, err := cfg.BuildBatcher(); err == nil {
		a.batcher.Apply(batcherCfg)
	}

	engine := rules.NewEngine(cfg.BuildRuleSet(a.root.With(logx.String("comp", "rules"))))
	a.pipe.Reload(cfg.BuildPipeline(), engine)

	if dispatcher, err := buildDispatcher(cfg, a.root); err == nil {
		a.pipe.SetDispatcher(dispatcher)
	} else {
		a.log.Warn("sink rebuild failed; keeping previous sinks", logx.Err(err))
	}

	contacts, err := notify.LoadContacts(cfg.ContactsPath)
	if err == nil {
		a.srv.SetContacts(contacts)
	}

	if a.boundAddr != "" && cfg.Server.Address != a.boundAddr {
		a.log.Warn("server address change requires restart", logx.String("address", cfg.Server.Address))
	}
}

// buildDispatcher constructs the sink set from config. A sink that fails to
// construct (e.g. bad telegram token) is skipped with a warning rather than
// failing the whole set.
func buildDispatcher(cfg *config.Config, log logx.Logger) (*sinks.Dispatcher, error) {
	consoleEnabled := true
	if cfg.Sinks.Console.Enabled != nil {
		consoleEnabled = *cfg.Sinks.Console.Enabled
	}

	set := []sinks.Sink{
		sinks.NewConsole(consoleEnabled),
		sinks.NewNtfy(cfg.Sinks.Ntfy.URL, cfg.Sinks.Ntfy.Enabled),
		sinks.NewBark(cfg.Sinks.Bark.URL, cfg.Sinks.Bark.DeviceKey, cfg.Sinks.Bark.Enabled),
		sinks.NewTwilio(cfg.Sinks.Twilio.AccountSID, cfg.Sinks.Twilio.AuthToken,
			cfg.Sinks.Twilio.From, cfg.Sinks.Twilio.To, cfg.Sinks.Twilio.Enabled),
	}

	tg, err := sinks.NewTelegram(cfg.Sinks.Telegram.Token, cfg.Sinks.Telegram.ChatID, cfg.Sinks.Telegram.Enabled)
	if err != nil {
		log.Warn("telegram sink unavailable", logx.Err(err))
	} else {
		set = append(set, tg)
	}

	return sinks.NewDispatcher(set, cfg.Sinks.RatePerSec, log.With(logx.String("comp", "sinks"))), nil
}

// PingStore implements server.HealthChecker.
func (a *App) PingStore(ctx context.Context) error { return a.store.Ping(ctx) }

// ProbeJudge implements server.HealthChecker.
func (a *App) ProbeJudge(ctx context.Context) bool { return a.jclient.Probe(ctx) }

// validateConfig is the reload gate: a config that fails here is rejected
// without touching the running services.
func validateConfig(_ context.Context, cfg *config.Config) error {
	if _, err := cfg.BuildRateLimit(); err != nil {
		return err
	}
	if _, err := cfg.BuildBatcher(); err != nil {
		return err
	}
	if _, err := cfg.BuildJudgeClient(); err != nil {
		return err
	}
	if _, err := cfg.BuildStorage(); err != nil {
		return err
	}
	return nil
}
