package kraken

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/quote"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMarketsNormalizesLegacyCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/AssetPairs", r.URL.Path)
		w.Write([]byte(`{"error":[],"result":{
			"XXBTZUSD":{"altname":"XBTUSD","wsname":"XBT/USD","status":"online"},
			"XETHXXBT":{"altname":"ETHXBT","wsname":"ETH/XBT","status":"online"},
			"XDGUSDT":{"altname":"XDGUSDT","wsname":"XDG/USDT","status":"online"},
			"FOOBAR":{"altname":"FOOBAR","wsname":"FOO/BAR","status":"delisted"},
			"NOWS":{"altname":"NOWS"}
		}}`))
	}))
	defer srv.Close()

	markets, err := New(Config{RestURL: srv.URL}, discard).Markets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Market{
		{Pair: domain.Pair{Base: "BTC", Quote: "USD"}, Native: "BTC/USD"},
		{Pair: domain.Pair{Base: "DOGE", Quote: "USDT"}, Native: "DOGE/USDT"},
		{Pair: domain.Pair{Base: "ETH", Quote: "BTC"}, Native: "ETH/BTC"},
	}, markets)
}

func TestMarketsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":["EGeneral:Temporary lockout"],"result":{}}`))
	}))
	defer srv.Close()

	_, err := New(Config{RestURL: srv.URL}, discard).Markets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Temporary lockout")
}

func TestStreamWritesTickerData(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan subscribeMsg, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub subscribeMsg
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub

		frames := []string{
			`{"channel":"status","type":"update","data":[{"system":"online"}]}`,
			`{"method":"subscribe","result":{"channel":"ticker","symbol":"ETH/BTC"},"success":true}`,
			`{"channel":"ticker","type":"snapshot","data":[{"symbol":"ETH/BTC","bid":0.05201,"bid_qty":1.5,"ask":0.05203,"ask_qty":2.1,"last":0.052}]}`,
			`{"channel":"ticker","type":"update","data":[{"symbol":"DOGE/USDT","bid":0.1234,"ask":0.1236}]}`,
			`{"channel":"heartbeat"}`,
		}
		for _, f := range frames {
			conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	src := New(Config{WsURL: "ws" + strings.TrimPrefix(srv.URL, "http")}, discard)
	tbl := quote.NewTable(src.ID())
	markets := []domain.Market{
		{Pair: domain.NewPair("ETH", "BTC"), Native: "ETH/BTC"},
		{Pair: domain.NewPair("DOGE", "USDT"), Native: "DOGE/USDT"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- src.Stream(ctx, markets, tbl.Writer()) }()

	sub := <-subscribed
	assert.Equal(t, "subscribe", sub.Method)
	assert.Equal(t, "ticker", sub.Params.Channel)
	assert.Equal(t, []string{"ETH/BTC", "DOGE/USDT"}, sub.Params.Symbol)

	require.Eventually(t, func() bool { return tbl.Len() == 2 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	eth, _ := tbl.Get("ethbtc")
	assert.Equal(t, domain.Quote{Ask: 0.05203, Bid: 0.05201}, eth)
	doge, _ := tbl.Get("dogeusdt")
	assert.Equal(t, domain.Quote{Ask: 0.1236, Bid: 0.1234}, doge)
}
