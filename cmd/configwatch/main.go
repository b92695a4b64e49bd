package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"config-watch/internal/api"
	"config-watch/internal/config"
	"config-watch/internal/console"
	"config-watch/internal/engine"
	"config-watch/internal/log"
	"config-watch/internal/push"
	"config-watch/internal/store"
	"config-watch/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.Debug {
		log.SetDebugMode()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := console.NewHub()
	go hub.Run(ctx)

	client := api.New(cfg.APIURL, cfg.RequestTimeout)
	eng := engine.New(store.New(), client, hub, engine.Options{
		Source:       cfg.FetchSource,
		Limit:        cfg.ConfigLimit,
		AwaitTimeout: cfg.AwaitTimeout,
	})

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Engine stopped")
		}
	}()

	channel := push.NewChannel(cfg.WSURL, cfg.ReconnectDelay, eng.Deliver)
	channel.SetStateHook(eng.SetConnected)
	channel.Connect()

	scheduler := tasks.New(eng, cfg.FetchSource)
	if err := scheduler.Schedule(ctx, cfg.AutoFetchCron, cfg.AutoTestCron); err != nil {
		log.Fatal().Err(err).Msg("Invalid schedule")
	}
	scheduler.Start()

	log.Info().
		Str("api", cfg.APIURL).
		Str("push", cfg.WSURL).
		Dur("reconnect_delay", cfg.ReconnectDelay).
		Msg("Config watch started")

	server := console.NewServer(eng, hub, channel)
	if err := server.Start(ctx, cfg.ListenAddr); err != nil {
		log.Error().Err(err).Msg("Console server failed")
		stop()
	}

	scheduler.Stop()
	_ = channel.Close()
	<-engineDone
	log.Info().Msg("Shutdown complete")
}
