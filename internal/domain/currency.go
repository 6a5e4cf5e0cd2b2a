package domain

import (
	"fmt"
	"strings"
)

// Currency is an asset code such as "BTC" or "USDT". Codes are upper-case.
type Currency string

// SourceID identifies a quote source (an exchange), e.g. "kucoin".
type SourceID string

// Pair is an ordered (base, quote) currency tuple.
type Pair struct {
	Base  Currency
	Quote Currency
}

// NewPair builds a Pair from raw codes, upper-casing both.
func NewPair(base, quote string) Pair {
	return Pair{
		Base:  Currency(strings.ToUpper(strings.TrimSpace(base))),
		Quote: Currency(strings.ToUpper(strings.TrimSpace(quote))),
	}
}

// ParsePair parses "BASE/QUOTE" notation.
func ParsePair(symbol string) (Pair, error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok || strings.TrimSpace(base) == "" || strings.TrimSpace(quote) == "" {
		return Pair{}, fmt.Errorf("domain: invalid pair symbol %q", symbol)
	}
	return NewPair(base, quote), nil
}

// Symbol returns the "BASE/QUOTE" notation.
func (p Pair) Symbol() string {
	return string(p.Base) + "/" + string(p.Quote)
}

// Key returns the quote table key: lower-cased base+quote with no separator.
func (p Pair) Key() string {
	return PairKey(p.Base, p.Quote)
}

// Reverse swaps base and quote.
func (p Pair) Reverse() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

// PairKey returns the quote table key for base/quote.
func PairKey(base, quote Currency) string {
	return strings.ToLower(string(base) + string(quote))
}

// Market is one tradable symbol as listed by a source at bootstrap.
type Market struct {
	Pair Pair
	// Native is the venue's own identifier ("BTC-USDT", "BTCUSDT", "BTC/USD").
	Native string
}

// Symbol returns the market's "BASE/QUOTE" notation.
func (m Market) Symbol() string {
	return m.Pair.Symbol()
}
