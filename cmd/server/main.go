package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/app"
	"github.com/stanstork/stratum-embed/internal/config"
	"github.com/stanstork/stratum-embed/internal/handlers"
	"github.com/stanstork/stratum-embed/internal/middleware"
	"github.com/stanstork/stratum-embed/internal/routes"
)

type application struct {
	config *config.Config
	core   *app.App
	logger zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration and fail fast when anything required is missing.
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	zerolog.SetGlobalLevel(app.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	core, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}
	defer core.Close()

	a := &application{config: cfg, core: core, logger: logger}

	// Initialize the HTTP router and middleware.
	router := a.initRouter()
	loggedRouter := middleware.LoggingMiddleware(a.logger)(router)
	corsHandler := middleware.CORS()(loggedRouter)
	handler := h.RecoveryHandler(h.PrintRecoveryStack(true))(corsHandler)

	// Start the HTTP server and handle graceful shutdown.
	a.startServer(handler)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (a *application) initRouter() http.Handler {
	jobHandler := handlers.NewJobHandler(a.core.Orchestrator, a.core.Store.Jobs, a.logger)
	healthHandler := handlers.NewHealthHandler(a.config.Store.Backend)

	return routes.NewRouter(jobHandler, healthHandler)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (a *application) startServer(handler http.Handler) {
	server := &http.Server{
		Addr:              ":" + a.config.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		a.logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		a.logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		a.logger.Error().Err(err).Msg("Server error occurred")
	}

	// In-flight jobs get the shutdown window to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		a.logger.Info().Msg("HTTP server shutdown complete.")
	}
}
