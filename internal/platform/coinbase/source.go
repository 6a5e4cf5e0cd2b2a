// Package coinbase streams best bid/ask from the Coinbase Exchange ticker
// channel and lists products from the public REST API.
package coinbase

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

// Config holds the endpoints of one Coinbase source.
type Config struct {
	ID      domain.SourceID
	RestURL string // e.g. "https://api.exchange.coinbase.com"
	WsURL   string // e.g. "wss://ws-feed.exchange.coinbase.com"
	FeeRate float64
}

// Source implements domain.Source for Coinbase Exchange.
type Source struct {
	cfg    Config
	rest   *rest.Client
	logger *slog.Logger
}

// New creates a Coinbase source.
func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.ID == "" {
		cfg.ID = "coinbase"
	}
	return &Source{
		cfg:    cfg,
		rest:   rest.New(cfg.RestURL),
		logger: logger.With(slog.String("component", "coinbase"), slog.String("source", string(cfg.ID))),
	}
}

func (s *Source) ID() domain.SourceID { return s.cfg.ID }
func (s *Source) FeeRate() float64    { return s.cfg.FeeRate }

type product struct {
	ID              string `json:"id"`
	BaseCurrency    string `json:"base_currency"`
	QuoteCurrency   string `json:"quote_currency"`
	Status          string `json:"status"`
	TradingDisabled bool   `json:"trading_disabled"`
}

// Markets lists every online product.
func (s *Source) Markets(ctx context.Context) ([]domain.Market, error) {
	var products []product
	if err := s.rest.GetJSON(ctx, "/products", &products); err != nil {
		return nil, fmt.Errorf("coinbase: products: %w", err)
	}
	out := make([]domain.Market, 0, len(products))
	for _, p := range products {
		if p.TradingDisabled || (p.Status != "" && p.Status != "online") {
			continue
		}
		if p.BaseCurrency == "" || p.QuoteCurrency == "" {
			continue
		}
		out = append(out, domain.Market{
			Pair:   domain.NewPair(p.BaseCurrency, p.QuoteCurrency),
			Native: p.ID,
		})
	}
	return out, nil
}

type subscribeMsg struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

type tickerMsg struct {
	Type      string          `json:"type"`
	ProductID string          `json:"product_id"`
	BestBid   decimal.Decimal `json:"best_bid"`
	BestAsk   decimal.Decimal `json:"best_ask"`
	Message   string          `json:"message"`
	Reason    string          `json:"reason"`
}

// Stream subscribes to the ticker channel for markets and writes every
// ticker until ctx is cancelled or the connection drops.
func (s *Source) Stream(ctx context.Context, markets []domain.Market, w domain.QuoteWriter) error {
	if len(markets) == 0 {
		return fmt.Errorf("coinbase: stream: %w", domain.ErrNoMarkets)
	}

	ids := make([]string, 0, len(markets))
	keys := make(map[string]string, len(markets))
	for _, m := range markets {
		ids = append(ids, m.Native)
		keys[m.Native] = m.Pair.Key()
	}

	conn, err := wsconn.Dial(ctx, s.cfg.WsURL, nil)
	if err != nil {
		return fmt.Errorf("coinbase: %w", err)
	}
	sub := subscribeMsg{Type: "subscribe", ProductIDs: ids, Channels: []string{"ticker"}}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("coinbase: subscribe: %w", err)
	}
	s.logger.Info("coinbase stream subscribed", slog.Int("products", len(ids)))

	return conn.Run(ctx, func(raw []byte) error {
		s.handle(raw, keys, w)
		return nil
	})
}

func (s *Source) handle(raw []byte, keys map[string]string, w domain.QuoteWriter) {
	var msg tickerMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	switch msg.Type {
	case "ticker":
		key, ok := keys[msg.ProductID]
		if !ok {
			key = strings.ToLower(strings.ReplaceAll(msg.ProductID, "-", ""))
		}
		w.Set(key, domain.Quote{
			Ask: msg.BestAsk.InexactFloat64(),
			Bid: msg.BestBid.InexactFloat64(),
		})
	case "error":
		s.logger.Warn("coinbase error message",
			slog.String("message", msg.Message),
			slog.String("reason", msg.Reason),
		)
	}
}
