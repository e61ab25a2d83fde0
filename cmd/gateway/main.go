package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/writer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting storefront",
		zap.Int("port", cfg.Server.Port),
		zap.String("host", cfg.Server.Host),
		zap.String("store", cfg.Store.Driver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document store
	store, err := repository.Open(ctx, cfg, logger.Named("store"))
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("Failed to close document store", zap.Error(err))
		}
	}()

	// Single writer for every mutation
	w, err := writer.New(logger.Named("writer"))
	if err != nil {
		logger.Fatal("Failed to start writer", zap.Error(err))
	}
	defer w.Stop()

	db := repository.NewDatabase(store, w, logger.Named("database"))

	// Setup service discovery
	var sd *discovery.ServiceDiscovery
	if discovery.Enabled(&cfg.Etcd) {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
			sd = nil
		} else {
			defer sd.Close()
		}
	}

	// Create gateway
	gw := gateway.NewGateway(cfg, logger.Named("gateway"), db, sd)
	gw.SetupRoutes()

	if err := gw.EnsureAdmin(ctx); err != nil {
		logger.Fatal("Failed to bootstrap admin user", zap.Error(err))
	}

	// Start gateway in goroutine
	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(ctx); err != nil {
			gwErr <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-gwErr:
		logger.Error("Gateway error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	logger.Info("Storefront stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zcfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
