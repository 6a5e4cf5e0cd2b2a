// Package graph builds the directed currency connectivity graph the cycle
// search runs over.
package graph

import (
	"slices"
	"strings"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Edge is a directed hop between two currencies, tagged with the first source
// that listed the pair. The tag is informational: leg sources are chosen per
// tick by the resolver.
type Edge struct {
	From   domain.Currency
	To     domain.Currency
	Source domain.SourceID
}

// Graph is an adjacency map keyed by currency. Parallel edges from several
// sources collapse onto one edge.
type Graph struct {
	edges map[domain.Currency]map[domain.Currency]domain.SourceID
	count int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{edges: make(map[domain.Currency]map[domain.Currency]domain.SourceID)}
}

// AddEdge inserts the directed edge e. It returns false when the edge was
// already present; the existing source tag is kept.
func (g *Graph) AddEdge(e Edge) bool {
	if e.From == e.To {
		return false
	}
	out, ok := g.edges[e.From]
	if !ok {
		out = make(map[domain.Currency]domain.SourceID)
		g.edges[e.From] = out
	}
	if _, ok := g.edges[e.To]; !ok {
		g.edges[e.To] = make(map[domain.Currency]domain.SourceID)
	}
	if _, dup := out[e.To]; dup {
		return false
	}
	out[e.To] = e.Source
	g.count++
	return true
}

// AddPair inserts both directions of p.
func (g *Graph) AddPair(p domain.Pair, source domain.SourceID) {
	g.AddEdge(Edge{From: p.Base, To: p.Quote, Source: source})
	g.AddEdge(Edge{From: p.Quote, To: p.Base, Source: source})
}

// Nodes returns every currency in sorted order.
func (g *Graph) Nodes() []domain.Currency {
	nodes := make([]domain.Currency, 0, len(g.edges))
	for c := range g.edges {
		nodes = append(nodes, c)
	}
	slices.Sort(nodes)
	return nodes
}

// Neighbors returns the currencies reachable from c in one hop, sorted.
func (g *Graph) Neighbors(c domain.Currency) []domain.Currency {
	out := make([]domain.Currency, 0, len(g.edges[c]))
	for to := range g.edges[c] {
		out = append(out, to)
	}
	slices.Sort(out)
	return out
}

// HasEdge reports whether from -> to exists.
func (g *Graph) HasEdge(from, to domain.Currency) bool {
	_, ok := g.edges[from][to]
	return ok
}

// Source returns the tag of the from -> to edge.
func (g *Graph) Source(from, to domain.Currency) (domain.SourceID, bool) {
	s, ok := g.edges[from][to]
	return s, ok
}

// NodeCount returns the number of currencies.
func (g *Graph) NodeCount() int { return len(g.edges) }

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int { return g.count }

// FiatFilter drops pairs quoted directly against a fiat reference currency.
// They cannot serve as intermediate hops between crypto assets.
type FiatFilter struct {
	Reference string
}

// Excludes reports whether symbol ("BASE/QUOTE") is quoted against the
// reference. It matches "X/REF", "REF/X", symbols ending in "REF4" and any
// symbol ending in the reference token, which also catches stablecoins such
// as "X/BUSD" when the reference is "USD".
func (f FiatFilter) Excludes(symbol string) bool {
	ref := strings.ToUpper(strings.TrimSpace(f.Reference))
	if ref == "" {
		return false
	}
	s := strings.ToUpper(symbol)
	return strings.HasSuffix(s, "/"+ref) ||
		strings.HasPrefix(s, ref+"/") ||
		strings.HasSuffix(s, ref+"4") ||
		strings.HasSuffix(s, ref)
}

// Build constructs the graph from each source's bootstrap markets. Sources
// are visited in the order given so the edge tags are deterministic.
func Build(order []domain.SourceID, markets map[domain.SourceID][]domain.Market, filter FiatFilter) *Graph {
	g := New()
	for _, src := range order {
		for _, m := range markets[src] {
			if m.Pair.Base == "" || m.Pair.Quote == "" {
				continue
			}
			if filter.Excludes(m.Symbol()) {
				continue
			}
			g.AddPair(m.Pair, src)
		}
	}
	return g
}
