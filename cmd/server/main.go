// Command server runs the exchange: one engine.OrderBook per configured
// symbol, served over both the TCP wire protocol and the HTTP/WebSocket
// API, grounded on the teacher's cmd/server/server.go signal-driven
// startup/shutdown shape.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fenrir/internal/api"
	"fenrir/internal/clock"
	"fenrir/internal/config"
	"fenrir/internal/engine"
	"fenrir/internal/events"
	"fenrir/internal/wire"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	sink := events.NewChannelSink()
	defer sink.Stop()
	hub := events.NewHub(sink)

	registry := engine.NewRegistry(sink, clock.System{})
	for _, symbol := range cfg.Symbols {
		book := registry.AddSymbol(symbol.Name)
		if cfg.DebugInvariants {
			book.EnableInvariantChecks()
		}
		log.Info().Str("symbol", symbol.Name).Int32("decimals", symbol.Decimals).Msg("registered symbol")
	}

	wireServer := wire.New(cfg.WireAddress, cfg.WirePort, registry, cfg)
	go wireServer.Run(ctx)

	apiServer := api.New(registry, cfg, hub)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddress,
		Handler: apiServer,
	}
	go func() {
		log.Info().Str("address", cfg.HTTPAddress).Msg("http/websocket server running")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	_ = httpServer.Shutdown(context.Background())
}
