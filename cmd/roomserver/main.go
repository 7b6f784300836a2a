// Package main provides the room server binary: a single GameOn room
// served over WebSocket, registered with the map directory at startup.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/gameontext/gameon-room-go/internal/config"
	"github.com/gameontext/gameon-room-go/internal/directory"
	"github.com/gameontext/gameon-room-go/internal/observability"
	"github.com/gameontext/gameon-room-go/internal/room"
	"github.com/gameontext/gameon-room-go/internal/server"
	"github.com/gameontext/gameon-room-go/internal/signing"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	roomFile := flag.String("room", "", "path to room descriptor YAML; overrides the configured room.file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *roomFile != "" {
		cfg.Room.File = *roomFile
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	// A broken crypto stack means every registration would be rejected
	// with an opaque 403; fail loudly at startup instead.
	if err := signing.SelfCheck(); err != nil {
		logger.Fatal("signature self-check failed", zap.Error(err))
	}

	desc, err := room.LoadDescriptorFromFile(cfg.Room.File)
	if err != nil {
		logger.Fatal("loading room descriptor", zap.String("file", cfg.Room.File), zap.Error(err))
	}
	logger.Info("room descriptor loaded",
		zap.String("file", cfg.Room.File),
		zap.String("room", desc.Name),
		zap.Int("doors", len(desc.Doors)),
	)

	rm := room.New(desc, logger)
	wsServer := server.NewWSServer(cfg.Server, logger, rm)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("websocket", wsServer)

	if cfg.Directory.Enabled {
		dirClient := directory.NewClient(cfg.Directory, logger)
		// Registration failure is not fatal: the room still serves
		// connections the mediator already routes to it.
		lifecycle.AddTask("directory-registration", func(ctx context.Context) error {
			return dirClient.EnsureRegistered(ctx, desc)
		})
	} else {
		logger.Info("directory registration disabled")
	}

	logger.Info("room server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
