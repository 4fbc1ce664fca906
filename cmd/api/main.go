package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"FuelLab_V2.0/internal/config"
	"FuelLab_V2.0/internal/database"
	"FuelLab_V2.0/internal/geminiservice"
	"FuelLab_V2.0/internal/nutrition"
	"FuelLab_V2.0/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// setupLogger configures the global zerolog logger from config.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Env == "local" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func gracefulShutdown(ctx context.Context, servers []*server.Server, timeout time.Duration) error {
	// Wait for the interrupt signal.
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the servers they have a few seconds to finish
	// the requests they are currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("service", s.Name).Msg("Server forced to shutdown")
			errs = append(errs, err)
		}
	}

	log.Info().Msg("Server exiting")
	return errors.Join(errs...)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogger(cfg)

	// Build only what the enabled services need.
	var deps server.Dependencies

	if cfg.Enabled(config.ServiceAnalyzer) {
		candidates := cfg.Analyzer.ModelCandidates
		if len(candidates) == 0 {
			candidates = geminiservice.DefaultCandidates
		}
		resolver := geminiservice.NewResolver(geminiservice.GenAIFactory{}, candidates)
		deps.Analysis = geminiservice.NewAnalyzer(resolver)
		log.Info().Strs("candidates", resolver.Candidates()).Msg("Gemini model candidates loaded")
	}

	if cfg.Enabled(config.ServiceAnimals) {
		dbService, err := database.NewService(cfg.Animals.DataFile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize data store")
		}
		defer dbService.Close()
		deps.DB = dbService
	}

	if cfg.Enabled(config.ServiceNutrition) {
		client, err := nutrition.NewClient(nutrition.ClientConfig{
			BaseURL:    cfg.Nutrition.BaseURL,
			UserAgent:  cfg.Nutrition.UserAgent,
			PageSize:   cfg.Nutrition.PageSize,
			CacheSize:  cfg.Nutrition.CacheSize,
			MaxRetries: cfg.Nutrition.MaxRetries,
			Timeout:    cfg.Nutrition.Timeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize Open Food Facts client")
		}
		deps.Products = client
	}

	servers, err := server.NewServers(cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("could not build servers")
	}

	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	for _, s := range servers {
		s := s // per-iteration copy (go directive is below 1.22)
		g.Go(func() error {
			log.Info().Str("service", s.Name).Str("addr", s.Addr).Msg("HTTP server listening")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// A failing listener cancels gctx, which stops the others too.
	g.Go(func() error {
		err := gracefulShutdown(gctx, servers, cfg.Server.ShutdownTimeout)
		stop() // Allow Ctrl+C to force shutdown
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("http server error")
		os.Exit(1)
	}
	log.Info().Msg("Graceful shutdown complete.")
}
