// Package app provides the top-level lifecycle of the scanner. It wires the
// optional Redis, Postgres and notification dependencies, builds the
// configured exchange sources and starts the goroutines of the selected mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/notify"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies, builds the sources, runs the configured mode and
// blocks until it returns. A mode failure other than cancellation is sent to
// the notifier as an error event.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
		slog.Any("sources", a.cfg.Scanner.EffectiveSources()),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	reg, err := buildRegistry(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	sources, err := reg.Ordered(sourceIDs(a.cfg.Scanner.EffectiveSources()))
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	switch strings.ToLower(a.cfg.Mode) {
	case "scan":
		err = a.ScanMode(ctx, deps, sources)
	case "cycles":
		err = a.CyclesMode(ctx, sources)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		a.alertFailure(deps.Notifier, err)
	}
	return err
}

func (a *App) alertFailure(n *notify.Notifier, cause error) {
	if n == nil || !n.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.Notify(ctx, notify.EventError, "Scanner stopped", cause.Error()); err != nil {
		a.logger.Warn("failure alert not delivered", slog.String("error", err.Error()))
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func sourceIDs(ids []string) []domain.SourceID {
	out := make([]domain.SourceID, len(ids))
	for i, id := range ids {
		out[i] = domain.SourceID(id)
	}
	return out
}
