package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"enforcement-analytics/internal/auth"
	"enforcement-analytics/internal/cache"
	"enforcement-analytics/internal/config"
	"enforcement-analytics/internal/db"
	apihttp "enforcement-analytics/internal/http"
	"enforcement-analytics/internal/logger"
	"enforcement-analytics/internal/repository"
	"enforcement-analytics/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to stop-record store")
	}

	stops := repository.NewStopRepository(database, cfg.Analytics.QueryTimeout)
	reports := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
	if reports.Enabled() {
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.TTL).Msg("report cache enabled")
	}

	areas := service.NewAreaService(stops, cfg.Analytics, log)
	corridors := service.NewCorridorService(stops, cfg.Analytics, log)
	thresholds := service.NewThresholdService(stops, cfg.Analytics, reports, log)
	patterns := service.NewPatternService(stops, cfg.Analytics, reports, log)

	handler := apihttp.NewHandler(areas, corridors, thresholds, patterns, log)

	var parser *auth.Parser
	if cfg.Auth.AccessSecret != "" {
		parser = auth.NewParser(cfg.Auth.AccessSecret)
	}

	router := apihttp.NewRouter(handler, parser, cfg.Environment, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", addr).Msg("analytics service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
