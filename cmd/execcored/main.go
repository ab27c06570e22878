// Command execcored wires up the execution core and runs it until a
// termination signal arrives. It exposes no network listener: HTTP/WebSocket
// framing is a caller-side concern this repo deliberately does not own.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"execcore/internal/config"
	"execcore/internal/logging"
	"execcore/internal/service"
)

func main() {
	logging.Init()
	defer logging.Sync()

	log := logging.L().Named("main")

	cfg := config.Load()

	svc, err := service.New(cfg)
	if err != nil {
		log.Fatal("failed to initialize execution service", zap.Error(err))
	}

	log.Info("execcore ready",
		zap.String("docker_host", cfg.DockerHost),
		zap.String("service_tag", cfg.ServiceTag),
		zap.Duration("max_timeout", cfg.Ceilings.MaxTimeout),
		zap.Int64("max_memory_bytes", cfg.Ceilings.MaxMemory),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down, draining active sandboxes")

	if err := svc.Close(); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
}
