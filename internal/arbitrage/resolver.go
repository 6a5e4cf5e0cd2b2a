// Package arbitrage scores currency cycles against live quote tables and
// picks the most profitable one per scan pass.
package arbitrage

import (
	"github.com/alanyoungcy/triarb/internal/domain"
)

// Book is the set of quote tables a pass reads, in tie-break order.
type Book interface {
	Readers() []domain.QuoteReader
	Reader(source domain.SourceID) (domain.QuoteReader, bool)
}

// Resolver picks the best source for every leg of a cycle and compounds the
// flat transaction fee. It holds no state between passes.
type Resolver struct {
	origin domain.SourceID
	fee    float64
}

// NewResolver creates a resolver. The first and last legs of every cycle are
// restricted to origin; fee is charged once per leg.
func NewResolver(origin domain.SourceID, fee float64) *Resolver {
	return &Resolver{origin: origin, fee: fee}
}

// Origin returns the originating source.
func (r *Resolver) Origin() domain.SourceID { return r.origin }

// Fee returns the per-leg fee fraction.
func (r *Resolver) Fee() float64 { return r.fee }

// Resolve scores every cycle and returns the best one. A cycle replaces the
// current best only when its profit is strictly greater, so ties keep the
// earlier cycle. When nothing scores above zero the result is empty.
func (r *Resolver) Resolve(cycles []domain.Cycle, book Book) domain.Opportunity {
	var best domain.Opportunity
	for _, c := range cycles {
		legs, profit := r.ResolveCycle(c, book)
		if profit > best.Profit {
			best = domain.Opportunity{Cycle: c, Legs: legs, Profit: profit}
		}
	}
	return best
}

// ResolveCycle returns the chosen leg records of c and the compounded
// profit. Once a leg has no usable rate the profit is 0 for good, but the
// remaining legs are still resolved so the record is complete.
func (r *Resolver) ResolveCycle(c domain.Cycle, book Book) ([]domain.Leg, float64) {
	k := len(c)
	if k == 0 {
		return nil, 0
	}

	var originOnly []domain.QuoteReader
	if origin, ok := book.Reader(r.origin); ok {
		originOnly = []domain.QuoteReader{origin}
	}
	all := book.Readers()

	legs := make([]domain.Leg, 0, k)
	profit := 1.0
	for i := 0; i < k; i++ {
		candidates := all
		if i == 0 || i == k-1 {
			candidates = originOnly
		}
		leg := bestLeg(c.Leg(i), candidates)
		if !leg.Resolved() {
			profit = 0
		}
		profit *= leg.Rate * (1 - r.fee)
		legs = append(legs, leg)
	}
	return legs, profit
}

// bestLeg returns the highest-rate quote for p among candidates. The first
// candidate reaching the maximum wins.
func bestLeg(p domain.Pair, candidates []domain.QuoteReader) domain.Leg {
	leg := domain.Leg{Pair: p.Symbol()}
	for _, q := range candidates {
		rate, reversed, ok := legRate(p, q)
		if !ok {
			continue
		}
		if rate > leg.Rate {
			leg.Rate = rate
			leg.Source = q.Source()
			leg.Reversed = reversed
		}
	}
	return leg
}

// legRate converts one unit of p.Base into p.Quote on q. The direct market
// sells at its bid. Otherwise the reversed market buys at its ask, which is
// only inverted when strictly positive.
func legRate(p domain.Pair, q domain.QuoteReader) (rate float64, reversed, ok bool) {
	if key := p.Key(); q.Contains(key) {
		return q.Bid(key), false, true
	}
	if key := p.Reverse().Key(); q.Contains(key) {
		if ask := q.Ask(key); ask > 0 {
			return 1 / ask, true, true
		}
	}
	return 0, false, false
}
