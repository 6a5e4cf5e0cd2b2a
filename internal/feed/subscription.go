package feed

import (
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/graph"
)

// SubscriptionOptions narrows the markets one source streams.
type SubscriptionOptions struct {
	// Filter drops fiat-quoted markets when ExcludeFiat is set.
	Filter      graph.FiatFilter
	ExcludeFiat bool
	// Needed, when non-empty, keeps only markets whose table key some cycle
	// leg reads. A source none of whose markets is needed keeps its full set
	// so its table still fills and warmup can complete.
	Needed map[string]struct{}
	// MaxSymbols caps the result. Zero keeps everything.
	MaxSymbols int
}

// SubscriptionSet returns the markets a source should stream, preserving the
// order the source listed them in.
func SubscriptionSet(markets []domain.Market, opts SubscriptionOptions) []domain.Market {
	if len(opts.Needed) > 0 {
		if out := subscriptionSet(markets, opts, opts.Needed); len(out) > 0 {
			return out
		}
	}
	return subscriptionSet(markets, opts, nil)
}

func subscriptionSet(markets []domain.Market, opts SubscriptionOptions, needed map[string]struct{}) []domain.Market {
	out := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if opts.ExcludeFiat && opts.Filter.Excludes(m.Symbol()) {
			continue
		}
		if needed != nil {
			if _, ok := needed[m.Pair.Key()]; !ok {
				continue
			}
		}
		out = append(out, m)
		if opts.MaxSymbols > 0 && len(out) == opts.MaxSymbols {
			break
		}
	}
	return out
}

// CycleKeys returns every table key a resolver pass may read for cycles:
// each leg's direct key and its reversed key.
func CycleKeys(cycles []domain.Cycle) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, c := range cycles {
		for i := range c {
			leg := c.Leg(i)
			keys[leg.Key()] = struct{}{}
			keys[leg.Reverse().Key()] = struct{}{}
		}
	}
	return keys
}
