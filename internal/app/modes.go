package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/cycle"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/feed"
	"github.com/alanyoungcy/triarb/internal/graph"
	"github.com/alanyoungcy/triarb/internal/metrics"
	"github.com/alanyoungcy/triarb/internal/notify"
	"github.com/alanyoungcy/triarb/internal/quote"
	"github.com/alanyoungcy/triarb/internal/report"
	"github.com/alanyoungcy/triarb/internal/scan"
	"github.com/alanyoungcy/triarb/internal/server"
	"github.com/alanyoungcy/triarb/internal/server/handler"
	"github.com/alanyoungcy/triarb/internal/server/ws"
)

const (
	// cyclesPreview is how many cycles the cycles mode logs individually.
	cyclesPreview = 20

	notifyQueueSize = 64
	alertTimeout    = 15 * time.Second
)

// plan is everything derived from the bootstrap metadata before ingestion
// starts.
type plan struct {
	order   []domain.SourceID
	graph   *graph.Graph
	cycles  []domain.Cycle
	markets map[domain.SourceID][]domain.Market
	// subs holds the markets each source streams.
	subs map[domain.SourceID][]domain.Market
}

// prepare bootstraps every source, builds the currency graph and the anchored
// cycle set, and picks each source's subscription set.
func (a *App) prepare(ctx context.Context, sources []domain.Source) (*plan, error) {
	sc := a.cfg.Scanner
	p := &plan{
		order: make([]domain.SourceID, 0, len(sources)),
		subs:  make(map[domain.SourceID][]domain.Market, len(sources)),
	}
	for _, s := range sources {
		p.order = append(p.order, s.ID())
	}

	p.markets = feed.Bootstrap(ctx, sources, a.logger)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filter := graph.FiatFilter{Reference: sc.FiatReference}
	p.graph = graph.Build(p.order, p.markets, filter)

	anchor := domain.Currency(strings.ToUpper(sc.Anchor))
	cycles, err := cycle.Anchored(p.graph, anchor, sc.MinCycle, sc.MaxCycle)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	p.cycles = cycles

	// Without cycles every source streams its filtered set so the tables
	// still fill and each tick reports the empty opportunity.
	var needed map[string]struct{}
	if len(cycles) > 0 {
		needed = feed.CycleKeys(cycles)
	}
	for _, id := range p.order {
		p.subs[id] = feed.SubscriptionSet(p.markets[id], feed.SubscriptionOptions{
			Filter:      filter,
			ExcludeFiat: sc.ExcludeFiatLegs,
			Needed:      needed,
			MaxSymbols:  a.cfg.Sources[string(id)].MaxSymbols,
		})
	}

	a.logger.InfoContext(ctx, "cycle set ready",
		slog.String("anchor", string(anchor)),
		slog.Int("currencies", p.graph.NodeCount()),
		slog.Int("edges", p.graph.EdgeCount()),
		slog.Int("cycles", len(cycles)),
	)
	if len(cycles) == 0 {
		a.logger.WarnContext(ctx, "no cycles through anchor; every tick will report an empty opportunity",
			slog.String("anchor", string(anchor)),
		)
	}
	return p, nil
}

// CyclesMode bootstraps the sources, logs the graph and cycle counts plus a
// preview of the cycle set, and returns.
func (a *App) CyclesMode(ctx context.Context, sources []domain.Source) error {
	a.logger.InfoContext(ctx, "starting cycles mode")

	p, err := a.prepare(ctx, sources)
	if err != nil {
		return fmt.Errorf("cycles mode: %w", err)
	}

	for _, id := range p.order {
		a.logger.InfoContext(ctx, "source summary",
			slog.String("source", string(id)),
			slog.Int("markets", len(p.markets[id])),
			slog.Int("subscriptions", len(p.subs[id])),
		)
	}
	for i, c := range p.cycles {
		if i == cyclesPreview {
			a.logger.InfoContext(ctx, "cycle preview truncated", slog.Int("remaining", len(p.cycles)-i))
			break
		}
		a.logger.InfoContext(ctx, "cycle", slog.Int("n", i+1), slog.String("path", c.String()))
	}
	return nil
}

// ScanMode starts one ingestion runner per source, the scan loop and,
// when enabled, the HTTP server. All of them stop when ctx is cancelled.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies, sources []domain.Source) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	p, err := a.prepare(ctx, sources)
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	// Quote tables: one per source, written only by that source's runner.
	readers := make([]domain.QuoteReader, 0, len(sources))
	for _, src := range sources {
		table := quote.NewTable(src.ID())
		readers = append(readers, table.Reader())

		runner := feed.NewRunner(src, p.subs[src.ID()], table.Writer(), a.logger)
		g.Go(func() error {
			return runner.Run(ctx)
		})
	}
	book := quote.NewBook(readers...)

	latest := report.NewLatest()
	sinks, workers := a.sinks(deps, latest)
	for _, w := range workers {
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	fanout := report.NewFanout(a.logger, sinks...)
	a.logger.InfoContext(ctx, "report sinks", slog.Any("sinks", fanout.Names()))

	sc := a.cfg.Scanner
	resolver := arbitrage.NewResolver(domain.SourceID(sc.OriginID()), sc.TransactionFee)
	loop := scan.New(scan.Config{
		Period:        sc.Period.Duration,
		WarmupPoll:    sc.WarmupPoll.Duration,
		WarmupTimeout: sc.WarmupTimeout.Duration,
	}, resolver, p.cycles, book, fanout, a.logger)
	loop.OnDegraded = func(ctx context.Context, empty []domain.SourceID) {
		if !deps.Notifier.Enabled() {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, alertTimeout)
		defer cancel()
		msg := fmt.Sprintf("No quotes after %s from: %v. The scanner keeps waiting.", sc.WarmupTimeout.Duration, empty)
		if err := deps.Notifier.Notify(ctx, notify.EventScannerDegraded, "Scanner degraded", msg); err != nil {
			a.logger.WarnContext(ctx, "degraded alert not delivered", slog.String("error", err.Error()))
		}
	}
	g.Go(func() error {
		return loop.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, resolver, loop, latest)
	}

	return g.Wait()
}

// sinks lists the report sinks for the wired dependencies in emit order.
// Sinks that call out to chat services are queued; their workers must run
// alongside the scan loop.
func (a *App) sinks(deps *Dependencies, latest *report.Latest) ([]report.Named, []*report.Async) {
	var workers []*report.Async
	out := []report.Named{
		{Name: "log", Sink: report.NewLogSink(a.logger)},
		{Name: "latest", Sink: latest},
	}
	if deps.SignalBus != nil {
		out = append(out, report.Named{
			Name: "bus",
			Sink: report.NewBusSink(deps.SignalBus, a.cfg.Redis.Channel, a.cfg.Redis.Stream),
		})
	}
	if deps.ReportStore != nil {
		out = append(out, report.Named{
			Name: "store",
			Sink: report.NewStoreSink(deps.ReportStore, a.cfg.Postgres.OnlyProfitable),
		})
	}
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		notifySink := report.NewAsync("notify",
			report.NewNotifySink(deps.Notifier, deps.Cooldown, a.cfg.Notify.Cooldown.Duration),
			notifyQueueSize, alertTimeout, a.logger)
		workers = append(workers, notifySink)
		out = append(out, report.Named{Name: "notify", Sink: notifySink})
	}
	return out, workers
}

// startHTTPServer adds the API server, and the /ws hub when a bus is wired, to
// g. The server is shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, resolver *arbitrage.Resolver, loop *scan.Loop, latest *report.Latest) {
	sc := a.cfg.Scanner

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Redis.Channel, func() any { return loop.Status() }, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, server.Handlers{
		Health: handler.NewHealthHandler(time.Now()),
		Status: handler.NewStatusHandler(handler.StatusInfo{
			Mode:    a.cfg.Mode,
			Anchor:  domain.Currency(strings.ToUpper(sc.Anchor)),
			Origin:  resolver.Origin(),
			Sources: sourceIDs(sc.EffectiveSources()),
			Fee:     resolver.Fee(),
		}, loop),
		Opportunity: handler.NewOpportunityHandler(latest, deps.ReportStore, a.logger),
		Metrics:     metrics.Handler(),
	}, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
