package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/SethReber/Enyim.Caching/internal/mockserver"
)

func main() {
	// Parse command-line flags
	addr := flag.String("addr", ":11211", "Address to listen on for both TCP and WebSocket (e.g., :11211)")
	delay := flag.Duration("delay", 0, "Artificial delay before each response, for testing client timeouts")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*debug {
		logger = logger.Level(zerolog.InfoLevel)
	}

	srv := mockserver.New(mockserver.Options{
		Address:       *addr,
		ResponseDelay: *delay,
		Logger:        logger,
	})

	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
	logger.Info().Str("addr", srv.Addr()).Msg("accepting both TCP and WebSocket connections")

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info().Stringer("signal", sig).Msg("shutting down")
	srv.Stop()
}
