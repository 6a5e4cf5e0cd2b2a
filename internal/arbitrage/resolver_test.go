package arbitrage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/quote"
)

type tables map[domain.SourceID]map[string]domain.Quote

// newBook builds a book with sources in the given order.
func newBook(order []domain.SourceID, data tables) *quote.Book {
	readers := make([]domain.QuoteReader, 0, len(order))
	for _, src := range order {
		tbl := quote.NewTable(src)
		for k, q := range data[src] {
			tbl.Set(k, q)
		}
		readers = append(readers, tbl.Reader())
	}
	return quote.NewBook(readers...)
}

func TestResolveEndToEndScenario(t *testing.T) {
	book := newBook([]domain.SourceID{"s1", "s2"}, tables{
		"s1": {
			"usdtbtc": {Bid: 0.00004, Ask: 0.000041},
			"ethusdt": {Bid: 2500, Ask: 2501},
		},
		"s2": {
			"btceth": {Bid: 16.0, Ask: 16.1},
		},
	})
	r := NewResolver("s1", 0.005)
	cycles := []domain.Cycle{{"USDT", "BTC", "ETH"}}

	opp := r.Resolve(cycles, book)

	want := 0.00004 * 16.0 * 2500 * math.Pow(1-0.005, 3)
	assert.InDelta(t, want, opp.Profit, 1e-9)
	assert.InDelta(t, 1.576, opp.Profit, 1e-3)
	assert.True(t, opp.Profitable())
	assert.Equal(t, cycles[0], opp.Cycle)
	assert.Equal(t, []domain.Leg{
		{Pair: "USDT/BTC", Rate: 0.00004, Source: "s1"},
		{Pair: "BTC/ETH", Rate: 16.0, Source: "s2"},
		{Pair: "ETH/USDT", Rate: 2500, Source: "s1"},
	}, opp.Legs)
}

func TestResolveCycleProfitComposition(t *testing.T) {
	book := newBook([]domain.SourceID{"o"}, tables{
		"o": {
			"ab": {Bid: 2},
			"bc": {Bid: 3},
			"ca": {Bid: 0.25},
		},
	})
	fee := 0.01
	r := NewResolver("o", fee)

	legs, profit := r.ResolveCycle(domain.Cycle{"A", "B", "C"}, book)
	require.Len(t, legs, 3)

	expected := 1.0
	for _, l := range legs {
		expected *= l.Rate * (1 - fee)
	}
	assert.InDelta(t, expected, profit, 1e-12)
	assert.InDelta(t, 1.5*math.Pow(0.99, 3), profit, 1e-12)
}

func TestReversedRate(t *testing.T) {
	book := newBook([]domain.SourceID{"o"}, tables{
		"o": {
			"btcusdt": {Bid: 1.9, Ask: 2.0},
			"btceth":  {Bid: 10},
			"ethusdt": {Bid: 1},
		},
	})
	r := NewResolver("o", 0)

	legs, _ := r.ResolveCycle(domain.Cycle{"USDT", "BTC", "ETH"}, book)
	require.NotEmpty(t, legs)
	assert.Equal(t, domain.Leg{Pair: "USDT/BTC", Rate: 0.5, Source: "o", Reversed: true}, legs[0])
	assert.False(t, legs[1].Reversed)
}

func TestReversedZeroAskIsUnresolved(t *testing.T) {
	book := newBook([]domain.SourceID{"o"}, tables{
		"o": {
			"btcusdt": {Bid: 1.9, Ask: 0},
			"btceth":  {Bid: 10},
			"ethusdt": {Bid: 1},
		},
	})
	legs, profit := NewResolver("o", 0).ResolveCycle(domain.Cycle{"USDT", "BTC", "ETH"}, book)
	assert.Zero(t, profit)
	assert.Equal(t, domain.Leg{Pair: "USDT/BTC"}, legs[0])
}

func TestReversedFlagFollowsChosenCandidate(t *testing.T) {
	// On the middle leg s1 only offers the reversed market (rate 0.5) and s2
	// offers the direct market at a better rate. The chosen leg is direct.
	book := newBook([]domain.SourceID{"s1", "s2"}, tables{
		"s1": {
			"usdtbtc": {Bid: 1},
			"ethbtc":  {Ask: 2},
			"ethusdt": {Bid: 1},
		},
		"s2": {
			"btceth": {Bid: 0.6},
		},
	})
	legs, _ := NewResolver("s1", 0).ResolveCycle(domain.Cycle{"USDT", "BTC", "ETH"}, book)
	assert.Equal(t, domain.Leg{Pair: "BTC/ETH", Rate: 0.6, Source: "s2", Reversed: false}, legs[1])
}

func TestFirstAndLastLegsUseOriginOnly(t *testing.T) {
	book := newBook([]domain.SourceID{"origin", "other"}, tables{
		"origin": {
			"usdtbtc": {Bid: 1},
			"btceth":  {Bid: 1},
			"ethusdt": {Bid: 1},
		},
		"other": {
			"usdtbtc": {Bid: 5},
			"btceth":  {Bid: 5},
			"ethusdt": {Bid: 5},
		},
	})
	legs, profit := NewResolver("origin", 0).ResolveCycle(domain.Cycle{"USDT", "BTC", "ETH"}, book)
	assert.Equal(t, domain.SourceID("origin"), legs[0].Source)
	assert.Equal(t, domain.SourceID("other"), legs[1].Source)
	assert.Equal(t, domain.SourceID("origin"), legs[2].Source)
	assert.InDelta(t, 5.0, profit, 1e-12)
}

func TestUnresolvedLegZeroesProfitAndKeepsLegs(t *testing.T) {
	book := newBook([]domain.SourceID{"o"}, tables{
		"o": {
			"ab": {Bid: 2},
			"ca": {Bid: 2},
		},
	})
	legs, profit := NewResolver("o", 0).ResolveCycle(domain.Cycle{"A", "B", "C"}, book)
	assert.Zero(t, profit)
	require.Len(t, legs, 3)
	assert.Equal(t, domain.Leg{Pair: "B/C"}, legs[1])
	assert.Equal(t, domain.SourceID("o"), legs[2].Source)
}

func TestDirectZeroBidDoesNotFallBackToReversed(t *testing.T) {
	book := newBook([]domain.SourceID{"o"}, tables{
		"o": {
			"ab": {Bid: 0},
			"ba": {Ask: 4},
			"bc": {Bid: 1},
			"ca": {Bid: 1},
		},
	})
	legs, profit := NewResolver("o", 0).ResolveCycle(domain.Cycle{"A", "B", "C"}, book)
	assert.Zero(t, profit)
	assert.Equal(t, domain.Leg{Pair: "A/B"}, legs[0])
}

func TestMissingOriginTable(t *testing.T) {
	book := newBook([]domain.SourceID{"other"}, tables{
		"other": {"ab": {Bid: 2}, "bc": {Bid: 2}, "ca": {Bid: 2}},
	})
	legs, profit := NewResolver("origin", 0).ResolveCycle(domain.Cycle{"A", "B", "C"}, book)
	assert.Zero(t, profit)
	assert.Empty(t, legs[0].Source)
	assert.Equal(t, domain.SourceID("other"), legs[1].Source)
	assert.Empty(t, legs[2].Source)
}

func TestResolverSettings(t *testing.T) {
	r := NewResolver("kucoin", 0.005)
	assert.Equal(t, domain.SourceID("kucoin"), r.Origin())
	assert.Equal(t, 0.005, r.Fee())
}

func TestTieBreakKeepsFirstSource(t *testing.T) {
	data := tables{
		"s1": {"usdtbtc": {Bid: 1}, "ethusdt": {Bid: 1}},
		"s2": {"btceth": {Bid: 3}},
		"s3": {"btceth": {Bid: 3}},
	}
	r := NewResolver("s1", 0)
	cycle := domain.Cycle{"USDT", "BTC", "ETH"}

	for i := 0; i < 10; i++ {
		legs, _ := r.ResolveCycle(cycle, newBook([]domain.SourceID{"s1", "s2", "s3"}, data))
		assert.Equal(t, domain.SourceID("s2"), legs[1].Source)
	}
	legs, _ := r.ResolveCycle(cycle, newBook([]domain.SourceID{"s1", "s3", "s2"}, data))
	assert.Equal(t, domain.SourceID("s3"), legs[1].Source)
}

func TestResolveStrictlyGreaterKeepsFirstCycle(t *testing.T) {
	book := newBook([]domain.SourceID{"o"}, tables{
		"o": {
			"ab": {Bid: 2}, "bc": {Bid: 1}, "ca": {Bid: 1},
			"ac": {Bid: 2}, "cb": {Bid: 1}, "ba": {Bid: 1},
		},
	})
	first := domain.Cycle{"A", "B", "C"}
	second := domain.Cycle{"A", "C", "B"}

	opp := NewResolver("o", 0).Resolve([]domain.Cycle{first, second}, book)
	assert.Equal(t, first, opp.Cycle)
	assert.InDelta(t, 2.0, opp.Profit, 1e-12)
}

func TestResolvePicksMostProfitable(t *testing.T) {
	book := newBook([]domain.SourceID{"o"}, tables{
		"o": {
			"ab": {Bid: 1}, "bc": {Bid: 1}, "ca": {Bid: 0.9},
			"ac": {Bid: 1.2}, "cb": {Bid: 1}, "ba": {Bid: 1},
		},
	})
	opp := NewResolver("o", 0.001).Resolve([]domain.Cycle{{"A", "B", "C"}, {"A", "C", "B"}}, book)
	assert.Equal(t, domain.Cycle{"A", "C", "B"}, opp.Cycle)
	assert.True(t, opp.Profitable())
}

func TestResolveNothingResolvable(t *testing.T) {
	book := newBook([]domain.SourceID{"o"}, tables{"o": {"xy": {Bid: 1}}})
	r := NewResolver("o", 0.0057)

	opp := r.Resolve([]domain.Cycle{{"A", "B", "C"}}, book)
	assert.Zero(t, opp.Profit)
	assert.Nil(t, opp.Cycle)
	assert.Empty(t, opp.Legs)
	assert.False(t, opp.Profitable())

	assert.Equal(t, domain.Opportunity{}, r.Resolve(nil, book))
}

func TestResolveIsIdempotent(t *testing.T) {
	book := newBook([]domain.SourceID{"s1", "s2"}, tables{
		"s1": {"usdtbtc": {Bid: 0.00004}, "ethusdt": {Bid: 2500}, "usdteth": {Bid: 0.0004}},
		"s2": {"btceth": {Bid: 16.0}, "ethbtc": {Ask: 0.07}},
	})
	r := NewResolver("s1", 0.0057)
	cycles := []domain.Cycle{{"USDT", "BTC", "ETH"}, {"USDT", "ETH", "BTC"}}

	first := r.Resolve(cycles, book)
	second := r.Resolve(cycles, book)
	assert.Equal(t, first, second)
}
