// Command server runs the identity service: registration, login, session
// rotation and the admin dashboard behind one HTTP listener.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Girirajbhatt/careerhub/internal/app"
	"github.com/Girirajbhatt/careerhub/internal/config"
	"github.com/Girirajbhatt/careerhub/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(app.ServiceName, cfg.LogLevel)
	log.Info("starting",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("store_driver", string(cfg.StoreDriver)),
	)

	a, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := a.Run(ctx); err != nil {
		return err
	}

	log.Info("stopped")
	return nil
}
