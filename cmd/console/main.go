package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/clusterdeck/console/pkg/config"
	"github.com/clusterdeck/console/pkg/gateway"
	"github.com/clusterdeck/console/pkg/logging"
	"github.com/clusterdeck/console/pkg/orchestration"
	"github.com/clusterdeck/console/pkg/streams"
	"github.com/clusterdeck/console/pkg/watch"
)

func setupLogger(cfg *config.Config) *logging.ColoredLogger {
	logger, err := logging.NewColoredLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Colors)
	if err != nil {
		panic(err)
	}
	return logger
}

func main() {
	bootLogger, err := logging.NewDefaultLogger()
	if err != nil {
		panic(err)
	}

	cfg := parseConsoleConfig(bootLogger)
	logger := setupLogger(cfg)

	kube, err := orchestration.NewKubeClient(cfg.Cluster.Kubeconfig)
	if err != nil {
		logger.ComponentError(logging.ComponentKube, "failed to create cluster client", zap.Error(err))
		os.Exit(1)
	}

	manager := streams.NewManager(kube, logger, streams.Options{
		TailLines: cfg.Streams.TailLines,
		ReadChunk: cfg.Streams.ReadChunk,
	})
	defer manager.StopAll()

	gw := gateway.New(logger, manager, kube, gateway.Config{
		SendBuffer: cfg.Streams.SendBuffer,
	})

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	watcher := watch.New(kube.Clientset(), gw, logger, cfg.Cluster.WatchNamespaces)
	go watcher.Run(watchCtx)

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: gw.Routes(),
	}

	go func() {
		logger.ComponentInfo(logging.ComponentGeneral, "Console HTTP server starting",
			zap.String("addr", cfg.Server.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ComponentError(logging.ComponentGeneral, "HTTP server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.ComponentInfo(logging.ComponentGeneral, "Shutting down console...")

	cancelWatch()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.ComponentError(logging.ComponentGeneral, "HTTP server shutdown error", zap.Error(err))
	}
	manager.StopAll()
	logger.ComponentInfo(logging.ComponentGeneral, "Console shutdown complete")
}
