package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
)

// Bootstrap fetches the market list of every source concurrently. A source
// whose metadata call fails or returns nothing maps to an empty list and is
// logged; it contributes no edges but does not stop the others.
func Bootstrap(ctx context.Context, sources []domain.Source, logger *slog.Logger) map[domain.SourceID][]domain.Market {
	logger = logger.With(slog.String("component", "bootstrap"))

	var (
		mu  sync.Mutex
		out = make(map[domain.SourceID][]domain.Market, len(sources))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			start := time.Now()
			markets, err := src.Markets(gctx)
			if err != nil {
				logger.Warn("source metadata unavailable",
					slog.String("source", string(src.ID())),
					slog.String("error", err.Error()),
				)
				markets = nil
			} else if len(markets) == 0 {
				logger.Warn("source listed no markets", slog.String("source", string(src.ID())))
			} else {
				logger.Info("source markets loaded",
					slog.String("source", string(src.ID())),
					slog.Int("markets", len(markets)),
					slog.Duration("took", time.Since(start)),
				)
			}
			metrics.SourceMarkets.WithLabelValues(string(src.ID())).Set(float64(len(markets)))

			mu.Lock()
			out[src.ID()] = markets
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
