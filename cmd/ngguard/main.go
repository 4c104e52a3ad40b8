package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/bot"
	"github.com/iamwavecut/ngguard/internal/config"
	"github.com/iamwavecut/ngguard/internal/db/redis"
	"github.com/iamwavecut/ngguard/internal/db/sqlite"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/infra"
	"github.com/iamwavecut/ngguard/internal/infrastructure/telegram"
	"github.com/iamwavecut/ngguard/internal/lifecycle"
	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/observability"
)

const shutdownTimeout = 10 * time.Second

type escalationStore interface {
	moderation.EscalationStore
	lifecycle.Component
}

func main() {
	cfg, err := config.Load()
	log.SetFormatter(&config.NbFormatter{})
	log.SetOutput(os.Stdout)
	if err != nil {
		log.WithField("error", err.Error()).Fatalln("cant load config")
	}
	log.SetLevel(log.Level(cfg.LogLevel))
	i18n.SetDefaultLanguage(cfg.DefaultLanguage)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithField("error", err.Error()).Error("exiting")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return errors.WithMessage(err, "cant initialize bot api")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}

	policy, err := cfg.Policy()
	if err != nil {
		return errors.WithMessage(err, "cant build policy")
	}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return errors.WithMessage(err, "cant open escalation store")
	}

	client := telegram.NewClient(botAPI, telegram.Config{
		RestrictDuration: cfg.Moderation.RestrictDuration,
		NoticeTTL:        cfg.Moderation.NoticeTTL,
	})
	engine := moderation.NewEngine(cfg.RuleSet(), store, client, policy)
	dispatcher := moderation.NewDispatcher(client)
	processor := bot.NewUpdateProcessor(engine, dispatcher, client,
		bot.WithGreeting(cfg.Moderation.Greet),
		bot.WithWorkers(cfg.Workers),
	)

	runtime := lifecycle.NewRuntime(
		lifecycle.Named("observability", observability.NewRuntime(cfg.MetricsAddr)),
		lifecycle.Named("store", store),
		lifecycle.Named("telegram", client),
	)
	if err := runtime.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithField("error", err.Error()).Error("cant stop runtime")
		}
	}()

	effective := engine.Policy()
	log.WithFields(log.Fields{
		"bot":       botAPI.Self.UserName,
		"store":     cfg.Storage.Backend,
		"threshold": effective.Threshold,
		"sanction":  effective.Action,
		"warn":      effective.Warn,
	}).Info("moderating")

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.AllowedUpdates = []string{"message"}
	updates, pollErr := bot.GetUpdatesChans(pollCtx, botAPI, updateConfig, botAPI.Buffer)

	processed := infra.GoRecoverable(pollCtx, -1, "process_updates", func(ctx context.Context) error {
		return processor.Run(ctx, updates)
	})
	// in-flight updates must finish before the store closes
	defer func() {
		cancelPoll()
		if err := drain(processed, shutdownTimeout); err != nil {
			log.WithField("error", err.Error()).Warn("update processing did not finish")
		}
	}()
	monitor := infra.MonitorExecutable(pollCtx)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case err := <-pollErr:
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return errors.WithMessage(err, "bot api get updates error")
		case err := <-processed:
			if err != nil && !errors.Is(err, context.Canceled) {
				return errors.WithMessage(err, "update processing stopped")
			}
			return nil
		case _, ok := <-monitor:
			if !ok {
				monitor = nil
				continue
			}
			log.Warn("executable file was modified")
			return nil
		}
	}
}

func newStore(ctx context.Context, cfg config.Config) (escalationStore, error) {
	ttl := cfg.Storage.RecordTTL
	switch cfg.Storage.Backend {
	case config.StoreSQLite:
		client, err := sqlite.NewSQLiteClient(ctx, cfg.DotPath, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return client.WithTTL(ttl), nil
	case config.StoreRedis:
		client, err := redis.NewRedisClient(ctx, cfg.Storage.RedisURL, ttl)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return moderation.NewMemoryStore(ttl), nil
	}
}

// drain waits until done is closed, at most timeout.
func drain(done <-chan error, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-done:
			if !ok {
				return nil
			}
		case <-timer.C:
			return errors.Errorf("still running after %s", timeout)
		}
	}
}
