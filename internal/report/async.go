package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
)

// Async moves a slow sink off the scan task. Emit only queues the report;
// Run delivers queued reports one at a time, each under its own timeout. A
// full queue drops the report and Emit returns an error so Fanout counts it.
type Async struct {
	name    string
	sink    domain.ReportSink
	queue   chan domain.Report
	timeout time.Duration
	logger  *slog.Logger
}

// NewAsync wraps sink with a queue of size reports. A zero timeout delivers
// without a deadline.
func NewAsync(name string, sink domain.ReportSink, size int, timeout time.Duration, logger *slog.Logger) *Async {
	if size <= 0 {
		size = 64
	}
	return &Async{
		name:    name,
		sink:    sink,
		queue:   make(chan domain.Report, size),
		timeout: timeout,
		logger:  logger.With(slog.String("component", "report_async"), slog.String("sink", name)),
	}
}

func (a *Async) Emit(_ context.Context, r domain.Report) error {
	select {
	case a.queue <- r:
		return nil
	default:
		return fmt.Errorf("report: %s queue full, dropped %s", a.name, r.ID)
	}
}

// Run delivers queued reports until ctx is cancelled.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-a.queue:
			a.deliver(ctx, r)
		}
	}
}

func (a *Async) deliver(ctx context.Context, r domain.Report) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if err := a.sink.Emit(ctx, r); err != nil {
		metrics.SinkErrors.WithLabelValues(a.name).Inc()
		a.logger.Warn("report sink failed",
			slog.String("report_id", r.ID),
			slog.String("error", err.Error()),
		)
	}
}
