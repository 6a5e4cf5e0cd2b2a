package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func market(symbol string) domain.Market {
	p, err := domain.ParsePair(symbol)
	if err != nil {
		panic(err)
	}
	return domain.Market{Pair: p, Native: symbol}
}

func TestFiatFilter(t *testing.T) {
	f := FiatFilter{Reference: "USD"}
	tests := []struct {
		symbol string
		want   bool
	}{
		{"BTC/USD", true},
		{"USD/JPY", true},
		{"ETH/BUSD", true},
		{"XYZ/USD4", true},
		{"BTC/USDT", false},
		{"USDT/BTC", false},
		{"ETH/BTC", false},
		{"USDC/USDT", false},
		{"btc/usd", true},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Excludes(tt.symbol))
		})
	}

	assert.False(t, FiatFilter{}.Excludes("BTC/USD"))
}

func TestBuildInsertsBothDirections(t *testing.T) {
	markets := map[domain.SourceID][]domain.Market{
		"kucoin": {market("BTC/USDT"), market("ETH/BTC"), market("BTC/USD")},
	}
	g := Build([]domain.SourceID{"kucoin"}, markets, FiatFilter{Reference: "USD"})

	assert.Equal(t, []domain.Currency{"BTC", "ETH", "USDT"}, g.Nodes())
	assert.Equal(t, 4, g.EdgeCount())
	assert.True(t, g.HasEdge("BTC", "USDT"))
	assert.True(t, g.HasEdge("USDT", "BTC"))
	assert.True(t, g.HasEdge("ETH", "BTC"))
	assert.True(t, g.HasEdge("BTC", "ETH"))
	assert.False(t, g.HasEdge("BTC", "USD"))
	assert.Equal(t, []domain.Currency{"ETH", "USDT"}, g.Neighbors("BTC"))
}

func TestBuildCollapsesParallelEdges(t *testing.T) {
	markets := map[domain.SourceID][]domain.Market{
		"kucoin":   {market("BTC/USDT")},
		"coinbase": {market("BTC/USDT"), market("ETH/USDT")},
	}
	g := Build([]domain.SourceID{"kucoin", "coinbase"}, markets, FiatFilter{})

	assert.Equal(t, 4, g.EdgeCount())
	src, ok := g.Source("BTC", "USDT")
	require.True(t, ok)
	assert.Equal(t, domain.SourceID("kucoin"), src)
	src, ok = g.Source("USDT", "ETH")
	require.True(t, ok)
	assert.Equal(t, domain.SourceID("coinbase"), src)
}

func TestBuildWithoutMarketsIsEmpty(t *testing.T) {
	g := Build([]domain.SourceID{"kucoin"}, map[domain.SourceID][]domain.Market{}, FiatFilter{Reference: "USD"})
	assert.Zero(t, g.NodeCount())
	assert.Zero(t, g.EdgeCount())
	assert.Empty(t, g.Neighbors("BTC"))
}

func TestAddEdgeIgnoresSelfLoops(t *testing.T) {
	g := New()
	assert.False(t, g.AddEdge(Edge{From: "BTC", To: "BTC"}))
	assert.True(t, g.AddEdge(Edge{From: "BTC", To: "ETH"}))
	assert.False(t, g.AddEdge(Edge{From: "BTC", To: "ETH", Source: "other"}))
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 2, g.NodeCount())
}
