package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/tourney/internal/config"
	"github.com/DoyleJ11/tourney/internal/httpapi"
	"github.com/DoyleJ11/tourney/internal/hub"
	"github.com/DoyleJ11/tourney/internal/logging"
	"github.com/DoyleJ11/tourney/internal/replicated"
	"github.com/DoyleJ11/tourney/internal/storage"
	"github.com/DoyleJ11/tourney/internal/ws"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, _ io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	defer logger.Sync()
	ctx = logging.WithLogger(ctx, logger)

	// --- Store ---
	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer backend.Close()

	checks := make(map[string]httpapi.Checker, len(backend.Checks))
	for name, c := range backend.Checks {
		checks[name] = c
	}

	// --- Hosted lobbies ---
	h := hub.NewHub(ctx)

	handler := httpapi.SetupRoutes(h, httpapi.Deps{
		Logger:     logger,
		Lobbies:    replicated.NewClient(backend.Store, replicated.WithLogger(logger.Named("replicated"))),
		LobbyLimit: cfg.LobbyLimit,
		Checks:     checks,
		WSOptions: []ws.Option{
			ws.WithOutboxSize(cfg.PeerOutboxSize),
			ws.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
		},
	})
	srv := httpapi.NewServer(cfg.HTTPAddr, handler)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infow("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
