package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"event-settlement/internal/app/bootstrap"
	"event-settlement/internal/config"
	"event-settlement/internal/logging"
	"event-settlement/internal/mcpserver"
	httptransport "event-settlement/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Msg("runtime init failed")
	}
	defer rt.Close()

	if err := rt.Announce.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("announce start failed")
	}
	go rt.Scanner.Run(ctx)

	r := httptransport.NewRouter(httptransport.RouterDeps{
		Events:      rt.Events,
		DB:          rt.Store,
		MCP:         mcpserver.New(rt.Events).Handler(),
		AdminAPIKey: cfg.Server.AdminAPIKey,
	})
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}
