// Package report delivers the record of every scan tick to logs, Redis,
// PostgreSQL, chat alerts and the HTTP API.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
	"github.com/alanyoungcy/triarb/internal/notify"
)

// LogSink writes one structured record per tick: Info when the best cycle is
// profitable, Debug otherwise.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "report"))}
}

func (s *LogSink) Emit(ctx context.Context, r domain.Report) error {
	level := slog.LevelDebug
	msg := "scan tick"
	if r.Found {
		level = slog.LevelInfo
		msg = "opportunity found"
	}
	if !s.logger.Enabled(ctx, level) {
		return nil
	}

	legs := make([]any, 0, len(r.Legs))
	for i, l := range r.Legs {
		attrs := []any{
			slog.String("pair", l.Pair),
			slog.Float64("rate", l.Rate),
			slog.String("source", string(l.Source)),
		}
		if l.Reversed && l.Rate != 0 {
			attrs = append(attrs, slog.Float64("reversed_from", 1/l.Rate))
		}
		legs = append(legs, slog.Group(fmt.Sprintf("leg%d", i), attrs...))
	}

	s.logger.Log(ctx, level, msg,
		slog.String("cycle", domain.Cycle(r.Cycle).String()),
		slog.Float64("profit", r.Profit),
		slog.Bool("found", r.Found),
		slog.Duration("took", r.Duration),
		slog.Group("legs", legs...),
	)
	return nil
}

// BusSink publishes every report on a Redis channel and appends it to a
// capped stream.
type BusSink struct {
	bus     domain.SignalBus
	channel string
	stream  string
}

// NewBusSink creates a BusSink. An empty channel or stream skips that half.
func NewBusSink(bus domain.SignalBus, channel, stream string) *BusSink {
	return &BusSink{bus: bus, channel: channel, stream: stream}
}

func (s *BusSink) Emit(ctx context.Context, r domain.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("report: marshal %s: %w", r.ID, err)
	}
	if s.channel != "" {
		if err := s.bus.Publish(ctx, s.channel, payload); err != nil {
			return err
		}
	}
	if s.stream != "" {
		if err := s.bus.StreamAppend(ctx, s.stream, payload); err != nil {
			return err
		}
	}
	return nil
}

// Alerter is the part of notify.Notifier the alert sink uses.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// NotifySink alerts on profitable reports, at most once per cycle per
// cooldown window.
type NotifySink struct {
	alerter  Alerter
	cooldown domain.Cooldown
	window   time.Duration
}

// NewNotifySink creates a NotifySink. A nil cooldown uses an in-process one.
func NewNotifySink(alerter Alerter, cooldown domain.Cooldown, window time.Duration) *NotifySink {
	if cooldown == nil {
		cooldown = NewMemoryCooldown()
	}
	return &NotifySink{alerter: alerter, cooldown: cooldown, window: window}
}

func (s *NotifySink) Emit(ctx context.Context, r domain.Report) error {
	if !r.Found {
		return nil
	}
	cycle := domain.Cycle(r.Cycle).String()
	if s.window > 0 {
		ok, err := s.cooldown.Allow(ctx, cycle, s.window)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	return s.alerter.Notify(ctx, notify.EventOpportunityFound,
		fmt.Sprintf("Arbitrage opportunity %.4f%%", (r.Profit-1)*100),
		FormatLegs(r),
	)
}

// FormatLegs renders a report as one line per leg.
func FormatLegs(r domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s profit %.6f\n", domain.Cycle(r.Cycle).String(), r.Profit)
	for _, l := range r.Legs {
		fmt.Fprintf(&b, "%s @ %.8g on %s", l.Pair, l.Rate, l.Source)
		if l.Reversed {
			b.WriteString(" (reversed)")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// MemoryCooldown is a process-local domain.Cooldown.
type MemoryCooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{until: make(map[string]time.Time), now: time.Now}
}

func (c *MemoryCooldown) Allow(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if t, ok := c.until[key]; ok && now.Before(t) {
		return false, nil
	}
	c.until[key] = now.Add(ttl)
	return true, nil
}

// StoreSink persists reports. With onlyFound set, unprofitable ticks are not
// written.
type StoreSink struct {
	store     domain.OpportunityStore
	onlyFound bool
}

func NewStoreSink(store domain.OpportunityStore, onlyFound bool) *StoreSink {
	return &StoreSink{store: store, onlyFound: onlyFound}
}

func (s *StoreSink) Emit(ctx context.Context, r domain.Report) error {
	if s.onlyFound && !r.Found {
		return nil
	}
	return s.store.Insert(ctx, r)
}

// Latest keeps the most recent report for readers such as the HTTP API.
type Latest struct {
	mu   sync.RWMutex
	last domain.Report
	ok   bool
}

func NewLatest() *Latest { return &Latest{} }

func (l *Latest) Emit(_ context.Context, r domain.Report) error {
	l.mu.Lock()
	l.last, l.ok = r, true
	l.mu.Unlock()
	return nil
}

// Get returns the last report and whether any tick has run yet.
func (l *Latest) Get() (domain.Report, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last, l.ok
}

// Named labels a sink for logs and metrics.
type Named struct {
	Name string
	Sink domain.ReportSink
}

// Fanout hands each report to every sink in order. A failing sink is
// logged and counted; the others still run and Emit never fails.
type Fanout struct {
	sinks  []Named
	logger *slog.Logger
}

func NewFanout(logger *slog.Logger, sinks ...Named) *Fanout {
	return &Fanout{sinks: sinks, logger: logger.With(slog.String("component", "report_fanout"))}
}

// Names lists the configured sinks.
func (f *Fanout) Names() []string {
	out := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		out[i] = s.Name
	}
	return out
}

func (f *Fanout) Emit(ctx context.Context, r domain.Report) error {
	for _, s := range f.sinks {
		if err := s.Sink.Emit(ctx, r); err != nil {
			metrics.SinkErrors.WithLabelValues(s.Name).Inc()
			f.logger.Warn("report sink failed",
				slog.String("sink", s.Name),
				slog.String("report_id", r.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
