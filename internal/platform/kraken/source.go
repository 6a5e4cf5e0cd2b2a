// Package kraken streams top-of-book quotes from the Kraken v2 websocket
// ticker channel and lists asset pairs from the public REST API.
package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/platform/rest"
	"github.com/alanyoungcy/triarb/internal/platform/wsconn"
)

// legacyCodes maps the REST API's legacy asset codes onto the codes the v2
// websocket and every other venue use.
var legacyCodes = map[string]string{
	"XBT": "BTC",
	"XDG": "DOGE",
}

// Config holds the endpoints of one Kraken source.
type Config struct {
	ID      domain.SourceID
	RestURL string // e.g. "https://api.kraken.com"
	WsURL   string // e.g. "wss://ws.kraken.com/v2"
	FeeRate float64
}

// Source implements domain.Source for Kraken.
type Source struct {
	cfg    Config
	rest   *rest.Client
	logger *slog.Logger
}

// New creates a Kraken source.
func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.ID == "" {
		cfg.ID = "kraken"
	}
	return &Source{
		cfg:    cfg,
		rest:   rest.New(cfg.RestURL),
		logger: logger.With(slog.String("component", "kraken"), slog.String("source", string(cfg.ID))),
	}
}

func (s *Source) ID() domain.SourceID { return s.cfg.ID }
func (s *Source) FeeRate() float64    { return s.cfg.FeeRate }

type assetPairsResponse struct {
	Error  []string `json:"error"`
	Result map[string]struct {
		Altname string `json:"altname"`
		WSName  string `json:"wsname"`
		Status  string `json:"status"`
	} `json:"result"`
}

// Markets lists every online asset pair, keyed by its websocket name.
func (s *Source) Markets(ctx context.Context) ([]domain.Market, error) {
	var resp assetPairsResponse
	if err := s.rest.GetJSON(ctx, "/0/public/AssetPairs", &resp); err != nil {
		return nil, fmt.Errorf("kraken: asset pairs: %w", err)
	}
	if len(resp.Error) > 0 {
		return nil, fmt.Errorf("kraken: asset pairs: %s", strings.Join(resp.Error, "; "))
	}

	out := make([]domain.Market, 0, len(resp.Result))
	for _, p := range resp.Result {
		if p.Status != "" && p.Status != "online" {
			continue
		}
		base, quote, ok := strings.Cut(p.WSName, "/")
		if !ok || base == "" || quote == "" {
			continue
		}
		pair := domain.NewPair(normalize(base), normalize(quote))
		out = append(out, domain.Market{Pair: pair, Native: pair.Symbol()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Native < out[j].Native })
	return out, nil
}

func normalize(code string) string {
	code = strings.ToUpper(code)
	if alias, ok := legacyCodes[code]; ok {
		return alias
	}
	return code
}

type subscribeMsg struct {
	Method string          `json:"method"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Channel string   `json:"channel"`
	Symbol  []string `json:"symbol"`
}

type tickerMsg struct {
	Channel string `json:"channel"`
	Type    string `json:"type"`
	Data    []struct {
		Symbol string          `json:"symbol"`
		Bid    decimal.Decimal `json:"bid"`
		Ask    decimal.Decimal `json:"ask"`
	} `json:"data"`
	// subscribe acknowledgements
	Method  string `json:"method"`
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// Stream subscribes to the ticker channel for markets and writes every
// snapshot and update until ctx is cancelled or the connection drops.
func (s *Source) Stream(ctx context.Context, markets []domain.Market, w domain.QuoteWriter) error {
	if len(markets) == 0 {
		return fmt.Errorf("kraken: stream: %w", domain.ErrNoMarkets)
	}

	symbols := make([]string, 0, len(markets))
	keys := make(map[string]string, len(markets))
	for _, m := range markets {
		symbols = append(symbols, m.Native)
		keys[m.Native] = m.Pair.Key()
	}

	conn, err := wsconn.Dial(ctx, s.cfg.WsURL, nil)
	if err != nil {
		return fmt.Errorf("kraken: %w", err)
	}
	sub := subscribeMsg{
		Method: "subscribe",
		Params: subscribeParams{Channel: "ticker", Symbol: symbols},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("kraken: subscribe: %w", err)
	}
	s.logger.Info("kraken stream subscribed", slog.Int("symbols", len(symbols)))

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
	if msg.Method == "subscribe" && msg.Success != nil && !*msg.Success {
		s.logger.Warn("kraken subscribe rejected", slog.String("error", msg.Error))
		return
	}
	if msg.Channel != "ticker" {
		return
	}
	for _, d := range msg.Data {
		key, ok := keys[d.Symbol]
		if !ok {
			key = strings.ToLower(strings.ReplaceAll(d.Symbol, "/", ""))
		}
		w.Set(key, domain.Quote{
			Ask: d.Ask.InexactFloat64(),
			Bid: d.Bid.InexactFloat64(),
		})
	}
}
