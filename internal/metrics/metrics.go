// Package metrics holds the Prometheus collectors shared by the ingestion
// tasks, the scan loop and the report sinks.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScanTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triarb_scan_ticks_total",
		Help: "Scan ticks that produced a report",
	})

	ResolveSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "triarb_resolve_seconds",
		Help:    "Time to resolve every cycle once",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 16),
	})

	BestProfit = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_best_profit_ratio",
		Help: "Best cycle profit of the last tick (1 means break-even)",
	})

	OpportunitiesFound = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triarb_opportunities_found_total",
		Help: "Ticks whose best cycle returned more than it cost",
	})

	ScannerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "triarb_scanner_state",
		Help: "1 for the scanner's current state",
	}, []string{"state"})

	QuoteTableSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "triarb_quote_table_symbols",
		Help: "Symbols with a known quote by source",
	}, []string{"source"})

	SourceMarkets = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "triarb_source_markets",
		Help: "Markets discovered at bootstrap by source",
	}, []string{"source"})

	WSReconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triarb_ws_reconnects_total",
		Help: "Stream reconnects by source",
	}, []string{"source"})

	SinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triarb_sink_errors_total",
		Help: "Report sink failures by sink",
	}, []string{"sink"})
)

var (
	registry *prometheus.Registry
	once     sync.Once
)

// Registry returns the process registry with every collector above plus the
// Go runtime and process collectors registered.
func Registry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			ScanTicks,
			ResolveSeconds,
			BestProfit,
			OpportunitiesFound,
			ScannerState,
			QuoteTableSize,
			SourceMarkets,
			WSReconnects,
			SinkErrors,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// SetState marks state as the only active scanner state.
func SetState(state string, all ...string) {
	for _, s := range all {
		ScannerState.WithLabelValues(s).Set(0)
	}
	ScannerState.WithLabelValues(state).Set(1)
}
