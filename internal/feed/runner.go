package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
)

const (
	defaultMinBackoff = 2 * time.Second
	defaultMaxBackoff = 60 * time.Second

	// A stream that stayed up this long resets the backoff.
	stableAfter = time.Minute
)

// Runner is the ingestion task of one source. It is the only writer of that
// source's quote table.
type Runner struct {
	source  domain.Source
	markets []domain.Market
	w       domain.QuoteWriter
	logger  *slog.Logger

	MinBackoff time.Duration
	MaxBackoff time.Duration

	reconnects atomic.Int64
}

// NewRunner creates the ingestion task for source streaming markets into w.
func NewRunner(source domain.Source, markets []domain.Market, w domain.QuoteWriter, logger *slog.Logger) *Runner {
	return &Runner{
		source:     source,
		markets:    markets,
		w:          w,
		logger:     logger.With(slog.String("component", "feed"), slog.String("source", string(source.ID()))),
		MinBackoff: defaultMinBackoff,
		MaxBackoff: defaultMaxBackoff,
	}
}

// Source returns the id of the source this runner feeds.
func (r *Runner) Source() domain.SourceID { return r.source.ID() }

// Reconnects returns how many times the stream was re-established.
func (r *Runner) Reconnects() int64 { return r.reconnects.Load() }

// Run streams until ctx is cancelled, reconnecting with exponential backoff
// whenever the stream ends. A source with nothing to stream returns nil at
// once; its table stays empty.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.markets) == 0 {
		r.logger.Warn("no markets to stream, source stays empty")
		return nil
	}
	r.logger.Info("ingestion started", slog.Int("markets", len(r.markets)))
	defer r.logger.Info("ingestion stopped")

	backoff := r.MinBackoff
	for {
		started := time.Now()
		err := r.source.Stream(ctx, r.markets, r.w)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) >= stableAfter {
			backoff = r.MinBackoff
		}

		attrs := []any{slog.Duration("retry_in", backoff)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		if errors.Is(err, domain.ErrWSDisconnect) || err == nil {
			r.logger.Warn("stream disconnected, reconnecting", attrs...)
		} else {
			r.logger.Error("stream failed, reconnecting", attrs...)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		r.reconnects.Add(1)
		metrics.WSReconnects.WithLabelValues(string(r.source.ID())).Inc()

		backoff *= 2
		if backoff > r.MaxBackoff {
			backoff = r.MaxBackoff
		}
	}
}
