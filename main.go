package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/ngwarden/internal/bot"
	"github.com/iamwavecut/ngwarden/internal/config"
	"github.com/iamwavecut/ngwarden/internal/db/sqlite"
	"github.com/iamwavecut/ngwarden/internal/handlers/commands"
	"github.com/iamwavecut/ngwarden/internal/infra"
	"github.com/iamwavecut/ngwarden/internal/infrastructure/telegram"
	"github.com/iamwavecut/ngwarden/internal/lifecycle"
	"github.com/iamwavecut/ngwarden/internal/moderation"
	"github.com/iamwavecut/ngwarden/internal/observability"
)

const shutdownTimeout = 10 * time.Second

var errExecutableModified = errors.New("executable file was modified")

func main() {
	log.SetFormatter(&config.NbFormatter{})
	log.SetOutput(os.Stdout)
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownObservability, err := observability.Init(ctx, cfg.MetricsAddr)
	if err != nil {
		log.WithError(err).Fatalln("cant initialize observability")
	}

	store, err := sqlite.NewSQLiteClient(ctx, cfg.DotPath, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatalln("cant open database")
	}

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithError(err).Errorln("cant initialize bot api")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	if cfg.Level() == log.TraceLevel {
		botAPI.Debug = true
	}
	log.WithField("bot", botAPI.Self.UserName).Info("authorized")

	mod := cfg.Moderation
	actuator := telegram.NewActuator(botAPI, botAPI.Self.ID, cfg.APIRateLimit)
	terms := moderation.NewTerms(store)
	ledger := moderation.NewLedger(store)
	spam := moderation.NewSpamTracker(mod.SpamInterval, mod.SpamThreshold)
	controller := moderation.NewController(moderation.EscalationPolicy{
		MuteThreshold: mod.MuteThreshold,
		MuteDuration:  mod.MuteDuration,
	}, ledger, actuator, store, moderation.SystemClock())

	recent := commands.NewRecentMessages(0)
	router := commands.NewRouter(commands.Config{
		Prefix:    cfg.CommandPrefix,
		Language:  cfg.DefaultLanguage,
		ReplyTTL:  mod.ReplyTTL,
		NoticeTTL: mod.NoticeTTL,
	}, actuator, terms, ledger, recent)

	intake := moderation.NewIntake(moderation.IntakeConfig{
		SelfID:                botAPI.Self.ID,
		ExemptPrefixes:        router.ExemptPrefixes(),
		Language:              cfg.DefaultLanguage,
		NoticeTTL:             mod.NoticeTTL,
		WarningLimitForNotice: mod.WarningLimitForNotice,
		MuteThreshold:         mod.MuteThreshold,
		MuteDuration:          mod.MuteDuration,
	}, terms, spam, controller, actuator, moderation.SystemClock())

	processor := bot.NewUpdateProcessor(botAPI.Self.ID, intake, router, recent)

	runtime := lifecycle.NewRuntime()
	runtime.Register("terms", terms)
	runtime.Register("spam_tracker", spam)
	runtime.Register("actuator", actuator)
	runtime.Register("controller", controller)
	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start components")
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancelRun()
		errCh := make(chan error, 1)
		infra.GoRecoverable(-1, "process_updates", func() {
			errCh <- runUpdates(gctx, botAPI, processor)
		})
		return <-errCh
	})
	g.Go(func() error {
		defer cancelRun()
		select {
		case <-gctx.Done():
			return nil
		case _, ok := <-infra.MonitorExecutable(gctx):
			if ok {
				return errExecutableModified
			}
			return nil
		}
	})

	runErr := g.Wait()
	switch {
	case errors.Is(runErr, errExecutableModified):
		log.Warnln(runErr.Error())
	case runErr != nil:
		log.WithError(runErr).Errorln("update loop stopped")
	default:
		log.Infoln("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := runtime.Stop(shutdownCtx); err != nil {
		log.WithError(err).Errorln("cant stop components")
	}
	if err := shutdownObservability(shutdownCtx); err != nil {
		log.WithError(err).Errorln("cant shutdown observability")
	}
	if err := store.Close(); err != nil {
		log.WithError(err).Errorln("cant close database")
	}
}

func runUpdates(ctx context.Context, botAPI *api.BotAPI, processor *bot.UpdateProcessor) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.AllowedUpdates = []string{"message"}
	updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errorChan:
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case update, ok := <-updateChan:
			if !ok {
				return nil
			}
			if err := processor.Process(ctx, &update); err != nil {
				log.WithError(err).Errorln("cant process update")
			}
		}
	}
}
