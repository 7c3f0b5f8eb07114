package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dispatchd/internal/directory"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	addr := flag.String("addr", envOr("DIRECTORYD_ADDR", ":8080"), "HTTP listen address")
	keepAlive := flag.Duration("keep-alive", 5*time.Second, "Keep-alive interval on registration streams")
	logLevel := flag.String("log-level", envOr("DIRECTORYD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	flag.Parse()

	lvl, err := zerolog.ParseLevel(strings.ToLower(*logLevel))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()

	reg := directory.NewCapabilityRegistry()
	srv := &http.Server{
		Addr:    *addr,
		Handler: directory.NewServer(reg, *keepAlive, log).Handler(),
	}

	go func() {
		log.Info().Str("addr", *addr).Msg("directoryd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	log.Info().Msg("directoryd stopped")
}
