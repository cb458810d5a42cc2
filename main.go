package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	configpkg "holdem/broker/internal/config"
	"holdem/broker/internal/engine"
	"holdem/broker/internal/facade"
	"holdem/broker/internal/lifecycle"
	"holdem/broker/internal/logging"
	"holdem/broker/internal/transport"
)

const startingChips = 1000

func main() {
	cfg, err := configpkg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize structured logger: %v\n", err)
		os.Exit(1)
	}
	logging.ReplaceGlobals(logger)
	defer func() {
		_ = logger.Sync()
	}()

	serviceID := cfg.ServiceID
	if serviceID == "" {
		serviceID = "table-1"
	}

	dir := transport.NewDirectory()
	tr := transport.New(serviceID, dir, transport.WithAckTimeout(cfg.AckTimeout), transport.WithLogger(logger))
	dir.Register(tr)

	e, err := engine.NewEngine(
		[]string{"seat-0", "seat-1"},
		startingChips,
		engine.WithBlinds(cfg.SmallBlind, cfg.BigBlind),
		engine.WithMaxBet(cfg.MaxBet),
		engine.WithMaxTableLimit(cfg.MaxTableLimit),
		engine.WithMaxPlayers(cfg.MaxPlayers),
		engine.WithRNG(rand.New(rand.NewSource(time.Now().UnixNano()))),
		engine.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to construct engine", logging.Error(err))
		os.Exit(1)
	}

	svc, err := facade.New(e, tr, nil, logger)
	if err != nil {
		logger.Error("failed to construct table service", logging.Error(err))
		os.Exit(1)
	}

	coordinator := lifecycle.Default()
	coordinator.Register("table-service:"+serviceID, lifecycle.PriorityMessaging, func(ctx context.Context) error {
		svc.Close()
		return nil
	})
	coordinator.Register("transport:"+serviceID, lifecycle.PriorityTransport, func(ctx context.Context) error {
		dir.Unregister(tr.ID())
		tr.Close()
		return nil
	})

	if err := svc.StartHand(); err != nil {
		logger.Error("failed to start first hand", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("table service started", logging.String("service_id", serviceID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutdown signal received, draining table service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := coordinator.ShutdownAll(shutdownCtx); err != nil {
		logger.Error("shutdown completed with errors", logging.Error(err))
		os.Exit(1)
	}
}
