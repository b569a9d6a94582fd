package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"pkg.mon.icu/rolebot/internal/api"
	"pkg.mon.icu/rolebot/internal/config"
	"pkg.mon.icu/rolebot/internal/delegation"
	"pkg.mon.icu/rolebot/internal/discord"
	"pkg.mon.icu/rolebot/internal/rolemap"
	"pkg.mon.icu/rolebot/internal/stats"
	"pkg.mon.icu/rolebot/internal/storage"
)

type app struct {
	ctx    context.Context
	cancel context.CancelFunc

	logConf zap.Config
	logger  *zap.Logger

	config *config.Config

	storage  storage.KV
	counters *stats.Counters
	discord  *discord.Discord
	api      *api.API
}

func newApp(ctx context.Context, lcf zap.Config, log *zap.Logger) (*app, error) {
	ctx, cancel := context.WithCancel(ctx)
	a := &app{ctx: ctx, cancel: cancel, logConf: lcf, logger: log}
	var err error

	log.Debug("Loading configuration.")
	a.config, err = config.Read()
	if err != nil {
		return nil, fmt.Errorf("couldn't load configuration: %w", err)
	}

	log.Debug("Successfully loaded configuration (also switching log level.)")
	lcf.Level.SetLevel(a.config.Logging.Level)

	log.Sugar().Debugf("Opening %s storage.", a.config.Storage.Driver)
	a.storage, err = storage.Open(ctx, log.Sugar(), storage.Options{
		Driver:      a.config.Storage.Driver,
		PostgresDSN: a.config.Storage.PostgresDSN,
		SQLitePath:  a.config.Storage.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't open storage: %w", err)
	}

	roles := rolemap.NewStore(a.storage, a.config.Storage.MaxAttempts, log.Sugar())
	grants := delegation.NewGraph(a.storage, a.config.Storage.MaxAttempts, log.Sugar())
	a.counters = stats.NewCounters(log.Sugar())

	log.Debug("Initializing Discord struct.")
	dc := discord.NewConfig(a.config.Discord.Guilds, a.config.Commands.MessageLink, a.config.Discord.Timeout, a.config.Discord.RegisterCommands)
	a.discord, err = discord.NewDiscord(ctx, log.Sugar(), a.config.Discord.Auth, dc, roles, grants, a.counters)
	if err != nil {
		_ = a.storage.Close()
		return nil, fmt.Errorf("couldn't initialize Discord struct: %w", err)
	}

	if a.config.Api.Port != 0 {
		log.Debug("Initializing API struct.")
		a.api = api.NewAPI(ctx, log.Sugar(), roles, grants, a.counters, api.NewConfig(a.config.Api.Port))
	}

	return a, nil
}

func (a *app) Run() error {
	defer func() {
		a.logger.Debug("Closing storage.")
		if err := a.storage.Close(); err != nil {
			a.logger.Sugar().Errorf("Couldn't close storage: %s.", err)
		}
		a.logger.Debug("Closed storage.")
	}()

	a.logger.Debug("Connecting to Discord API gateway.")
	if err := a.discord.Connect(); err != nil {
		return fmt.Errorf("couldn't connect to Discord: %s", err)
	}
	defer func() {
		a.logger.Debug("Closing connection with Discord API gateway.")
		if err := a.discord.Close(); err != nil {
			a.logger.Sugar().Errorf("Couldn't close Discord: %s.", err)
		}
		a.logger.Debug("Closed connection with Discord API gateway.")
	}()
	a.logger.Debug("Successfully connected to Discord API gateway.")

	if a.api != nil {
		a.api.Listen()
		defer func() {
			if err := a.api.Close(); err != nil {
				a.logger.Sugar().Errorf("Couldn't close API: %s.", err)
			}
		}()
	}

	a.logger.Info("Launch complete. Send SIGINT to gracefully terminate.")
	<-a.ctx.Done()
	a.logger.Sugar().Infof("SIGINT received, terminating. Event outcomes: %v.", a.counters.Snapshot())

	return a.ctx.Err()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	lcf := zap.NewDevelopmentConfig() // to later switch level without reallocation
	lcf.Level.SetLevel(zapcore.DebugLevel)
	lcf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	lcf.DisableCaller = true
	log, _ := lcf.Build()
	defer func() { _ = log.Sync() }()

	log.Info("Initializing application.")
	a, err := newApp(ctx, lcf, log)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Sugar().Fatalf("Couldn't initialize application: %s.", err)
		}

		return
	}

	log.Debug("Initialization tasks complete, continuing with launch.")
	if err := a.Run(); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Sugar().Fatalf("Application crashed: %s.", err)
		}
	}
}
