package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/Marketen/validator-client/internal/adapters"
	"github.com/Marketen/validator-client/internal/api"
	"github.com/Marketen/validator-client/internal/application/services"
	"github.com/Marketen/validator-client/internal/config"
	"github.com/Marketen/validator-client/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	logger.Info("Starting validator-client")
	logger.Info("Beacon node URL: %s", cfg.BeaconNodeURL)
	logger.Info("Remote signer URL: %s", cfg.RemoteSignerURL)
	logger.Info("Managing %d validators", len(cfg.ValidatorIndices))

	beaconAdapter, err := adapters.NewBeaconHTTPAdapter(cfg.BeaconNodeURL)
	if err != nil {
		logger.Error("Failed to create beacon HTTP adapter: %v", err)
		os.Exit(1)
	}

	signer, err := adapters.NewRemoteSignerAdapter(cfg.RemoteSignerURL)
	if err != nil {
		logger.Error("Failed to create remote signer adapter: %v", err)
		os.Exit(1)
	}

	tracker := services.NewReorgTracker()
	cache := services.NewDutyCache(cfg.SlotsPerEpoch)

	reorgFeed, err := adapters.NewReorgEventsAdapter(cfg.BeaconNodeURL, tracker)
	if err != nil {
		logger.Error("Failed to create reorg events adapter: %v", err)
		os.Exit(1)
	}

	dutyCycle := services.NewDutyCycleService(
		beaconAdapter,
		signer,
		tracker,
		cache,
		services.DutyCycleConfig{
			ValidatorIndices: cfg.ValidatorIndices,
			Graffiti:         cfg.Graffiti,
			GenesisTime:      cfg.GenesisTime,
			SecondsPerSlot:   cfg.SecondsPerSlot,
			SlotsPerEpoch:    cfg.SlotsPerEpoch,
			FetchRetries:     cfg.FetchRetries,
			FetchBackoff:     cfg.FetchBackoff,
			CallTimeout:      cfg.CallTimeout,
		},
	)

	router := mux.NewRouter()
	if err := api.RegisterRoutes(router, api.DefaultHandlers(tracker, cache)); err != nil {
		logger.Error("Failed to register API routes: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("Serving API on %s", cfg.HTTPAPIAddr)
		if err := http.ListenAndServe(cfg.HTTPAPIAddr, router); err != nil {
			logger.Error("API server stopped: %v", err)
		}
	}()

	go reorgFeed.Run(ctx)
	go dutyCycle.Run(ctx)

	// Handle SIGINT / SIGTERM for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Warn("Received signal %s, shutting down...", sig)
}
