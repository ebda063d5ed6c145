package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"ex-sniper/internal/bump"
	"ex-sniper/internal/cache"
	"ex-sniper/internal/command"
	"ex-sniper/internal/discord"
	"ex-sniper/internal/dispatch"
	"ex-sniper/internal/docstore"
	"ex-sniper/internal/gateway"
	"ex-sniper/internal/llm"
	"ex-sniper/internal/session"
	"ex-sniper/internal/settings"
	"ex-sniper/internal/spy"
	"ex-sniper/pkg/sniper"
)

// app holds the long-lived collaborators. Token-bound pieces (the REST
// client and the gateway manager) are rebuilt by newRunner on every start.
type app struct {
	cfg    appConfig
	logger *slog.Logger

	session    *session.Context
	outbound   *session.Outbound
	settings   *settings.Store
	history    *cache.History
	spies      *spy.Set
	bumps      *bump.Registry
	webhooks   *discord.WebhookNotifier
	executor   *command.Executor
	dispatcher *dispatch.Dispatcher
	supervisor *session.Supervisor
	client     *session.Client
	notifier   sniper.Notifier
}

func run(args []string) error {
	cfg, err := loadConfig(args, nil)
	if errors.Is(err, errHelpRequested) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var echo *consoleNotifier
	if cfg.console {
		echo = newConsoleNotifier()
	}

	application, err := newApp(ctx, cfg, logger, echo)
	if err != nil {
		return err
	}
	defer application.close()

	return application.run(ctx, echo)
}

func newLogger(cfg appConfig, output io.Writer) *slog.Logger {
	options := &slog.HandlerOptions{Level: cfg.logLevel}
	if cfg.logFormat == logFormatText {
		return slog.New(slog.NewTextHandler(output, options))
	}

	return slog.New(slog.NewJSONHandler(output, options))
}

// newApp loads persisted state and wires every collaborator. It performs no
// network I/O; the session starts only through the supervisor.
func newApp(ctx context.Context, cfg appConfig, logger *slog.Logger, echo *consoleNotifier) (*app, error) {
	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", cfg.dataDir, err)
	}
	documents := docstore.New(cfg.dataDir)

	notifiers := sniper.MultiNotifier{session.NewLogNotifier(logger)}
	if echo != nil {
		notifiers = append(notifiers, echo)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		outbound: session.NewOutbound(),
		history:  cache.New(cache.WithCapacity(cfg.cacheCapacity)),
		notifier: notifiers,
	}

	a.settings = settings.NewStore(documents, settings.WithLogger(logger.With("component", "settings")))
	if err := a.settings.Load(); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	a.spies = spy.New(documents, spy.WithLogger(logger.With("component", "spy")))
	if err := a.spies.Load(); err != nil {
		return nil, fmt.Errorf("load spy list: %w", err)
	}
	a.session = session.NewContext(cfg.token, a.settings)

	a.bumps = bump.New(a.outbound,
		bump.WithLogger(logger.With("component", "bump")),
		bump.WithDocuments(documents),
	)
	resumed, err := a.bumps.Restore(cfg.resumeBumps)
	if err != nil {
		a.bumps.Close()
		return nil, fmt.Errorf("restore bumps: %w", err)
	}
	if len(resumed) > 0 {
		logger.Info("resumed bumps", "bump_ids", resumed)
	}

	askers, err := buildAskers(ctx, cfg)
	if err != nil {
		a.bumps.Close()
		return nil, err
	}

	supervisor, err := session.NewSupervisor(a.session, a.newRunner,
		session.WithSupervisorLogger(logger.With("component", "session")),
		session.WithSupervisorNotifier(a.notifier),
		session.WithShutdownTimeout(cfg.shutdownTimeout),
	)
	if err != nil {
		a.bumps.Close()
		return nil, err
	}
	a.supervisor = supervisor

	table, err := command.NewTable(command.Builtins(command.Dependencies{
		Users:    a.outbound,
		Snipes:   a.history,
		Bumps:    a.bumps,
		Spies:    a.spies,
		Profile:  a.outbound,
		Session:  a.supervisor,
		Asker:    askers,
		Notifier: a.notifier,
		Logger:   logger.With("component", "command"),
		SelfID:   a.session.SelfID,
	})...)
	if err != nil {
		a.bumps.Close()
		return nil, fmt.Errorf("build command table: %w", err)
	}

	a.executor, err = command.NewExecutor(table, a.outbound,
		command.WithLogger(logger.With("component", "command")),
		command.WithNotifier(a.notifier),
		command.WithMaxConcurrent(cfg.maxConcurrentCommands),
	)
	if err != nil {
		a.bumps.Close()
		return nil, fmt.Errorf("build command executor: %w", err)
	}

	a.webhooks = discord.NewWebhookNotifier(a.outbound, a.settings.Webhook, logger.With("component", "webhook"))

	a.dispatcher, err = dispatch.New(dispatch.Dependencies{
		SelfID:   a.session.SelfID,
		Settings: a.settings.Settings,
		Cache:    a.history,
		Watched:  a.spies,
		Users:    cache.NewUsers(cfg.userCacheCapacity),
		Resolver: a.outbound,
		Commands: a.executor,
		Webhooks: a.webhooks,
		Notifier: a.notifier,
	},
		dispatch.WithLogger(logger.With("component", "dispatch")),
		dispatch.WithLookupTimeout(cfg.lookupTimeout),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	a.client, err = session.NewClient(a.supervisor, a.session)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build session client: %w", err)
	}

	return a, nil
}

func buildAskers(ctx context.Context, cfg appConfig) (*llm.Registry, error) {
	askers := make(map[string]llm.Asker, 2)
	if cfg.openAI.APIKey != "" {
		provider, err := llm.NewOpenAI(cfg.openAI)
		if err != nil {
			return nil, fmt.Errorf("build openai provider: %w", err)
		}
		askers[llm.ProviderOpenAI] = provider
	}
	if cfg.gemini.APIKey != "" {
		provider, err := llm.NewGemini(ctx, cfg.gemini)
		if err != nil {
			return nil, fmt.Errorf("build gemini provider: %w", err)
		}
		askers[llm.ProviderGemini] = provider
	}

	registry, err := llm.NewRegistry(askers)
	if err != nil {
		return nil, fmt.Errorf("build llm registry: %w", err)
	}

	return registry, nil
}

// newRunner builds the token-bound REST client and gateway manager for one
// session and points the outbound proxy at the new client.
func (a *app) newRunner(token string) (session.Runner, error) {
	rest, err := discord.New(token, discord.WithLogger(a.logger.With("component", "discord")))
	if err != nil {
		return nil, err
	}
	a.outbound.Swap(rest)

	return gateway.New(token, rest, a.dispatcher,
		gateway.WithLogger(a.logger.With("component", "gateway")),
		gateway.WithNotifier(a.notifier),
		gateway.WithURL(a.cfg.gatewayURL),
		gateway.WithProperties(a.cfg.properties),
		gateway.WithOnValidated(a.onValidated),
	), nil
}

func (a *app) onValidated(ctx context.Context, self sniper.User) {
	a.session.SetSelf(self)
	if err := a.webhooks.Connected(ctx, self); err != nil {
		a.logger.WarnContext(ctx, "connect webhook failed", "error", err)
	}
}

// run serves the supervisor and, when enabled, the console until ctx ends or
// the operator quits.
func (a *app) run(ctx context.Context, echo *consoleNotifier) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.supervisor.Run(groupCtx)
	})

	if a.session.Token() != "" {
		if err := a.client.Start(groupCtx, ""); err != nil {
			a.logger.Error("start session failed", "error", err)
		}
	}

	if echo != nil {
		group.Go(func() error {
			defer cancel()
			return runConsole(groupCtx, newConsole(a.client, a.outbound, echo), a.cfg.dataDir)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run: %w", err)
	}

	return nil
}

func (a *app) close() {
	if a.executor != nil {
		a.executor.Close()
	}
	if a.bumps != nil {
		a.bumps.Close()
	}
}
