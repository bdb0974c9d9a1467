// Command server runs the comms backend: the WebSocket chat gateway and the
// REST surface for room history and search.
//
// Startup order:
//  1. Load .env (best effort) and environment configuration
//  2. Configure zerolog (level, optional pretty console output)
//  3. Open SQLite and run migrations
//  4. Configure OpenTelemetry tracing (when enabled)
//  5. Select the broker (in-process or NATS) per configuration
//  6. Mount routes and serve until SIGINT/SIGTERM, then drain gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codecraft-edu/comms-backend/internal/config"
	httpapi "github.com/codecraft-edu/comms-backend/internal/http"
	"github.com/codecraft-edu/comms-backend/internal/observability"
	"github.com/codecraft-edu/comms-backend/internal/repo"
	"github.com/codecraft-edu/comms-backend/internal/sysutil"
	"github.com/codecraft-edu/comms-backend/internal/ws"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Msg("comms backend starting")

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("configure tracing")
	}

	broker, closeBroker, err := buildBroker(cfg.Broker)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Broker.Driver).Msg("configure broker")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, broker, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("broker", cfg.Broker.Driver).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	closeBroker()
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	log.Info().Msg("bye")
}

// buildBroker selects the Broker implementation for the configured driver.
// The returned close function drains the NATS connection; for the in-process
// broker it is a no-op.
func buildBroker(cfg config.BrokerConfig) (ws.Broker, func(), error) {
	switch cfg.Driver {
	case "nats":
		nb, err := ws.NewNatsBroker(cfg.NATSURL, log.With().Str("component", "nats-broker").Logger())
		if err != nil {
			return nil, nil, err
		}
		return nb, nb.Close, nil
	default:
		return ws.NewMemoryBroker(), func() {}, nil
	}
}
