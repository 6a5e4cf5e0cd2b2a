// Package binanceus streams top-of-book quotes from Binance.US using the
// combined depth5 stream, and lists tradable symbols from exchangeInfo.
package binanceus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/platform/rest"
	"github.com/alanyoungcy/triarb/internal/platform/wsconn"
)

// maxStreams is the number of streams one combined connection accepts.
const maxStreams = 1024

// Config holds the endpoints of one Binance.US source.
type Config struct {
	ID      domain.SourceID
	RestURL string // e.g. "https://api.binance.us"
	WsURL   string // e.g. "wss://stream.binance.us:9443"
	FeeRate float64
}

// Source implements domain.Source for Binance.US.
type Source struct {
	cfg    Config
	rest   *rest.Client
	logger *slog.Logger
}

// New creates a Binance.US source.
func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.ID == "" {
		cfg.ID = "binanceus"
	}
	return &Source{
		cfg:    cfg,
		rest:   rest.New(cfg.RestURL),
		logger: logger.With(slog.String("component", "binanceus"), slog.String("source", string(cfg.ID))),
	}
}

func (s *Source) ID() domain.SourceID { return s.cfg.ID }
func (s *Source) FeeRate() float64    { return s.cfg.FeeRate }

type exchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
	} `json:"symbols"`
}

// Markets lists every symbol in TRADING status.
func (s *Source) Markets(ctx context.Context) ([]domain.Market, error) {
	var info exchangeInfo
	if err := s.rest.GetJSON(ctx, "/api/v3/exchangeInfo", &info); err != nil {
		return nil, fmt.Errorf("binanceus: exchange info: %w", err)
	}
	out := make([]domain.Market, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		if sym.Status != "TRADING" || sym.BaseAsset == "" || sym.QuoteAsset == "" {
			continue
		}
		out = append(out, domain.Market{
			Pair:   domain.NewPair(sym.BaseAsset, sym.QuoteAsset),
			Native: sym.Symbol,
		})
	}
	return out, nil
}

// depthEvent is one frame of the combined stream.
type depthEvent struct {
	Stream string `json:"stream"`
	Data   struct {
		Bids [][]decimal.Decimal `json:"bids"`
		Asks [][]decimal.Decimal `json:"asks"`
	} `json:"data"`
}

// StreamURL builds the combined stream URL for markets.
func (s *Source) StreamURL(markets []domain.Market) string {
	streams := make([]string, 0, len(markets))
	for _, m := range markets {
		streams = append(streams, strings.ToLower(m.Native)+"@depth5")
	}
	return strings.TrimRight(s.cfg.WsURL, "/") + "/stream?streams=" + strings.Join(streams, "/")
}

// Stream connects to the combined depth stream and writes the best level of
// every frame until ctx is cancelled or the connection drops.
func (s *Source) Stream(ctx context.Context, markets []domain.Market, w domain.QuoteWriter) error {
	if len(markets) == 0 {
		return fmt.Errorf("binanceus: stream: %w", domain.ErrNoMarkets)
	}
	if len(markets) > maxStreams {
		s.logger.Warn("too many symbols for one connection, truncating",
			slog.Int("requested", len(markets)),
			slog.Int("max", maxStreams),
		)
		markets = markets[:maxStreams]
	}

	keys := make(map[string]string, len(markets))
	for _, m := range markets {
		keys[strings.ToLower(m.Native)] = m.Pair.Key()
	}

	conn, err := wsconn.Dial(ctx, s.StreamURL(markets), nil)
	if err != nil {
		return fmt.Errorf("binanceus: %w", err)
	}
	s.logger.Info("binanceus stream connected", slog.Int("symbols", len(markets)))

	return conn.Run(ctx, func(raw []byte) error {
		s.handle(raw, keys, w)
		return nil
	})
}

func (s *Source) handle(raw []byte, keys map[string]string, w domain.QuoteWriter) {
	var ev depthEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.Stream == "" {
		return
	}
	name, _, _ := strings.Cut(ev.Stream, "@")
	key, ok := keys[name]
	if !ok {
		key = name
	}
	ask, hasAsk := top(ev.Data.Asks)
	bid, hasBid := top(ev.Data.Bids)
	if !hasAsk && !hasBid {
		return
	}
	w.Update(key, func(q domain.Quote) domain.Quote {
		if hasAsk {
			q.Ask = ask
		}
		if hasBid {
			q.Bid = bid
		}
		return q
	})
}

// top returns the price of the first level.
func top(levels [][]decimal.Decimal) (float64, bool) {
	if len(levels) == 0 || len(levels[0]) == 0 {
		return 0, false
	}
	return levels[0][0].InexactFloat64(), true
}
