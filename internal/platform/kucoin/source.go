// Package kucoin streams level2 best bid/ask changes from KuCoin. The public
// websocket needs a short-lived token fetched over REST before every
// connection.
package kucoin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/platform/rest"
	"github.com/alanyoungcy/triarb/internal/platform/wsconn"
)

const (
	// topicBatch is the number of symbols sent in one subscribe request.
	topicBatch = 99

	level2Topic = "/market/level2:"

	defaultPingInterval = 18 * time.Second

	okCode = "200000"
)

// Config holds the endpoints of one KuCoin source. The websocket endpoint is
// discovered through the bullet-public call.
type Config struct {
	ID      domain.SourceID
	RestURL string // e.g. "https://api.kucoin.com"
	FeeRate float64
}

// Source implements domain.Source for KuCoin.
type Source struct {
	cfg    Config
	rest   *rest.Client
	logger *slog.Logger
}

// New creates a KuCoin source.
func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.ID == "" {
		cfg.ID = "kucoin"
	}
	return &Source{
		cfg:    cfg,
		rest:   rest.New(cfg.RestURL),
		logger: logger.With(slog.String("component", "kucoin"), slog.String("source", string(cfg.ID))),
	}
}

func (s *Source) ID() domain.SourceID { return s.cfg.ID }
func (s *Source) FeeRate() float64    { return s.cfg.FeeRate }

type symbolsResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Symbol        string `json:"symbol"`
		BaseCurrency  string `json:"baseCurrency"`
		QuoteCurrency string `json:"quoteCurrency"`
		EnableTrading bool   `json:"enableTrading"`
	} `json:"data"`
}

// Markets lists every symbol with trading enabled.
func (s *Source) Markets(ctx context.Context) ([]domain.Market, error) {
	var resp symbolsResponse
	if err := s.rest.GetJSON(ctx, "/api/v2/symbols", &resp); err != nil {
		return nil, fmt.Errorf("kucoin: symbols: %w", err)
	}
	if resp.Code != okCode {
		return nil, fmt.Errorf("kucoin: symbols: code %s: %s", resp.Code, resp.Msg)
	}
	out := make([]domain.Market, 0, len(resp.Data))
	for _, sym := range resp.Data {
		if !sym.EnableTrading || sym.BaseCurrency == "" || sym.QuoteCurrency == "" {
			continue
		}
		out = append(out, domain.Market{
			Pair:   domain.NewPair(sym.BaseCurrency, sym.QuoteCurrency),
			Native: sym.Symbol,
		})
	}
	return out, nil
}

type bulletResponse struct {
	Code string `json:"code"`
	Data struct {
		Token           string `json:"token"`
		InstanceServers []struct {
			Endpoint     string `json:"endpoint"`
			PingInterval int64  `json:"pingInterval"` // milliseconds
		} `json:"instanceServers"`
	} `json:"data"`
}

// session is the connect information returned by bullet-public.
type session struct {
	url          string
	pingInterval time.Duration
}

func (s *Source) newSession(ctx context.Context) (session, error) {
	var resp bulletResponse
	if err := s.rest.PostJSON(ctx, "/api/v1/bullet-public", &resp); err != nil {
		return session{}, fmt.Errorf("kucoin: bullet: %w", err)
	}
	if resp.Code != okCode || resp.Data.Token == "" || len(resp.Data.InstanceServers) == 0 {
		return session{}, fmt.Errorf("kucoin: bullet: unexpected response code %q", resp.Code)
	}
	server := resp.Data.InstanceServers[0]

	u, err := url.Parse(server.Endpoint)
	if err != nil {
		return session{}, fmt.Errorf("kucoin: bullet endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", resp.Data.Token)
	q.Set("connectId", uuid.NewString())
	u.RawQuery = q.Encode()

	ping := time.Duration(server.PingInterval) * time.Millisecond
	if ping <= 0 {
		ping = defaultPingInterval
	}
	return session{url: u.String(), pingInterval: ping}, nil
}

// Topics groups the level2 subscriptions for markets into batches.
func Topics(markets []domain.Market) []string {
	var topics []string
	for start := 0; start < len(markets); start += topicBatch {
		end := min(start+topicBatch, len(markets))
		names := make([]string, 0, end-start)
		for _, m := range markets[start:end] {
			names = append(names, m.Native)
		}
		topics = append(topics, level2Topic+strings.Join(names, ","))
	}
	return topics
}

type envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
	Code    json.RawMessage `json:"code"`
}

type subscribeMsg struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Topic          string `json:"topic"`
	PrivateChannel bool   `json:"privateChannel"`
	Response       bool   `json:"response"`
}

type pingMsg struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type l2Update struct {
	Changes struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
	} `json:"changes"`
	Symbol string `json:"symbol"`
}

// Stream fetches a token, connects, subscribes once the server says welcome
// and applies every level2 change until ctx is cancelled or the connection
// drops. A side absent from a change keeps its previous value.
func (s *Source) Stream(ctx context.Context, markets []domain.Market, w domain.QuoteWriter) error {
	if len(markets) == 0 {
		return fmt.Errorf("kucoin: stream: %w", domain.ErrNoMarkets)
	}

	keys := make(map[string]string, len(markets))
	for _, m := range markets {
		keys[m.Native] = m.Pair.Key()
	}
	topics := Topics(markets)

	sess, err := s.newSession(ctx)
	if err != nil {
		return err
	}
	conn, err := wsconn.Dial(ctx, sess.url, nil)
	if err != nil {
		return fmt.Errorf("kucoin: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.keepalive(runCtx, conn, sess.pingInterval)

	subscribed := false
	return conn.Run(runCtx, func(raw []byte) error {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil
		}
		switch env.Type {
		case "welcome":
			if subscribed {
				return nil
			}
			subscribed = true
			for i, topic := range topics {
				msg := subscribeMsg{
					ID:       fmt.Sprintf("%s-%d", env.ID, i),
					Type:     "subscribe",
					Topic:    topic,
					Response: true,
				}
				if err := conn.WriteJSON(msg); err != nil {
					return fmt.Errorf("kucoin: subscribe: %w", err)
				}
			}
			s.logger.Info("kucoin stream subscribed",
				slog.Int("symbols", len(markets)),
				slog.Int("requests", len(topics)),
			)
		case "message":
			if env.Subject == "trade.l2update" {
				s.applyL2(env, keys, w)
			}
		case "error":
			s.logger.Warn("kucoin error message",
				slog.String("code", string(env.Code)),
				slog.String("payload", string(raw)),
			)
		}
		return nil
	})
}

func (s *Source) applyL2(env envelope, keys map[string]string, w domain.QuoteWriter) {
	var upd l2Update
	if err := json.Unmarshal(env.Data, &upd); err != nil {
		return
	}
	symbol := upd.Symbol
	if _, name, ok := strings.Cut(env.Topic, ":"); ok && symbol == "" {
		symbol = name
	}
	key, ok := keys[symbol]
	if !ok {
		key = strings.ToLower(strings.ReplaceAll(symbol, "-", ""))
	}

	ask, hasAsk := firstPrice(upd.Changes.Asks)
	bid, hasBid := firstPrice(upd.Changes.Bids)
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

// firstPrice parses the price of the first change entry. Entries with a zero
// price only carry a sequence number and are skipped.
func firstPrice(changes [][]string) (float64, bool) {
	if len(changes) == 0 || len(changes[0]) == 0 {
		return 0, false
	}
	d, err := decimal.NewFromString(changes[0][0])
	if err != nil || !d.IsPositive() {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// keepalive sends the application-level ping KuCoin expects; the server
// drops connections that stay silent past the ping timeout.
func (s *Source) keepalive(ctx context.Context, conn *wsconn.Conn, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(pingMsg{ID: uuid.NewString(), Type: "ping"}); err != nil {
				return
			}
		}
	}
}
