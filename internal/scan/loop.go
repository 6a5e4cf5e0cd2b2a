// Package scan runs the periodic resolver pass over the live quote tables.
package scan

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
)

// State is the scanner's lifecycle state.
type State int32

const (
	// Warming waits until every source has quoted at least one symbol.
	Warming State = iota
	// Scanning resolves all cycles once per period.
	Scanning
)

func (s State) String() string {
	switch s {
	case Warming:
		return "warming"
	case Scanning:
		return "scanning"
	default:
		return "unknown"
	}
}

var allStates = []string{Warming.String(), Scanning.String()}

// Book is what the loop needs from the quote tables.
type Book interface {
	arbitrage.Book
	Ready() bool
	Empty() []domain.SourceID
	Sizes() map[domain.SourceID]int
}

// Config controls the loop timing.
type Config struct {
	Period     time.Duration
	WarmupPoll time.Duration
	// WarmupTimeout marks the scanner degraded when warming takes longer.
	// Zero waits without bound. Waiting continues either way.
	WarmupTimeout time.Duration
}

// Loop is the single scan task. It only reads the quote tables.
type Loop struct {
	cfg      Config
	resolver *arbitrage.Resolver
	cycles   []domain.Cycle
	book     Book
	sink     domain.ReportSink
	logger   *slog.Logger

	// OnDegraded, when set, is called once when warmup exceeds its timeout.
	OnDegraded func(ctx context.Context, empty []domain.SourceID)

	state    atomic.Int32
	degraded atomic.Bool
	ticks    atomic.Int64
}

// New creates the scan loop over a precomputed cycle set.
func New(cfg Config, resolver *arbitrage.Resolver, cycles []domain.Cycle, book Book, sink domain.ReportSink, logger *slog.Logger) *Loop {
	if cfg.Period <= 0 {
		cfg.Period = 100 * time.Millisecond
	}
	if cfg.WarmupPoll <= 0 {
		cfg.WarmupPoll = time.Second
	}
	return &Loop{
		cfg:      cfg,
		resolver: resolver,
		cycles:   cycles,
		book:     book,
		sink:     sink,
		logger:   logger.With(slog.String("component", "scanner")),
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Degraded reports whether warmup ran past its timeout. The flag is sticky
// for the life of the loop.
func (l *Loop) Degraded() bool { return l.degraded.Load() }

// Ticks returns the number of completed scan passes.
func (l *Loop) Ticks() int64 { return l.ticks.Load() }

// Cycles returns the precomputed cycle set.
func (l *Loop) Cycles() []domain.Cycle { return l.cycles }

// Status is a point-in-time view of the loop for the HTTP API.
type Status struct {
	State    string                  `json:"state"`
	Degraded bool                    `json:"degraded"`
	Ticks    int64                   `json:"ticks"`
	Cycles   int                     `json:"cycles"`
	Tables   map[domain.SourceID]int `json:"tables"`
	Empty    []domain.SourceID       `json:"empty_sources,omitempty"`
}

// Status reports the loop's state and the size of every quote table.
func (l *Loop) Status() Status {
	return Status{
		State:    l.State().String(),
		Degraded: l.Degraded(),
		Ticks:    l.Ticks(),
		Cycles:   len(l.cycles),
		Tables:   l.book.Sizes(),
		Empty:    l.book.Empty(),
	}
}

// Run warms up and then scans once per period until ctx is cancelled.
// A pass slower than the period delays the next one; ticks never overlap.
func (l *Loop) Run(ctx context.Context) error {
	l.setState(Warming)
	if err := l.warmup(ctx); err != nil {
		return err
	}
	l.setState(Scanning)
	l.logger.Info("scanner started",
		slog.Int("cycles", len(l.cycles)),
		slog.Duration("period", l.cfg.Period),
	)

	ticker := time.NewTicker(l.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scanner stopped", slog.Int64("ticks", l.Ticks()))
			return ctx.Err()
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

func (l *Loop) warmup(ctx context.Context) error {
	if l.book.Ready() {
		return nil
	}
	l.logger.Info("waiting for quotes", slog.Any("empty_sources", l.book.Empty()))

	start := time.Now()
	ticker := time.NewTicker(l.cfg.WarmupPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if l.book.Ready() {
			l.logger.Info("all sources quoting", slog.Duration("waited", time.Since(start)))
			return nil
		}
		if l.cfg.WarmupTimeout > 0 && !l.degraded.Load() && time.Since(start) >= l.cfg.WarmupTimeout {
			l.degraded.Store(true)
			empty := l.book.Empty()
			l.logger.Warn("warmup timed out, still waiting",
				slog.Duration("timeout", l.cfg.WarmupTimeout),
				slog.Any("empty_sources", empty),
			)
			if l.OnDegraded != nil {
				l.OnDegraded(ctx, empty)
			}
		}
	}
}

// Tick runs one resolver pass and emits its report. Callers outside Run must
// make sure the book is ready.
func (l *Loop) Tick(ctx context.Context) domain.Report {
	start := time.Now()
	opp := l.resolver.Resolve(l.cycles, l.book)
	took := time.Since(start)

	rep := domain.NewReport(uuid.NewString(), start.UTC(), opp, took)
	rep.Degraded = l.degraded.Load()
	l.ticks.Add(1)

	metrics.ScanTicks.Inc()
	metrics.ResolveSeconds.Observe(took.Seconds())
	metrics.BestProfit.Set(opp.Profit)
	if rep.Found {
		metrics.OpportunitiesFound.Inc()
	}
	for src, n := range l.book.Sizes() {
		metrics.QuoteTableSize.WithLabelValues(string(src)).Set(float64(n))
	}

	if l.sink != nil {
		if err := l.sink.Emit(ctx, rep); err != nil {
			l.logger.Warn("report emit failed", slog.String("error", err.Error()))
		}
	}
	return rep
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	metrics.SetState(s.String(), allStates...)
}
