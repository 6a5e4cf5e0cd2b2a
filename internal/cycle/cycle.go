// Package cycle enumerates bounded-length simple cycles of the currency graph
// and rotates them to start at the anchor currency.
package cycle

import (
	"fmt"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/graph"
)

// Simple returns every simple directed cycle of g with at most maxLen nodes.
// Each cycle is reported once, rooted at its smallest currency, and the
// output order is deterministic.
func Simple(g *graph.Graph, maxLen int) [][]domain.Currency {
	if maxLen < 2 {
		return nil
	}
	nodes := g.Nodes()
	index := make(map[domain.Currency]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}
	adj := make([][]int, len(nodes))
	for i, n := range nodes {
		for _, to := range g.Neighbors(n) {
			adj[i] = append(adj[i], index[to])
		}
	}

	var out [][]domain.Currency
	path := make([]int, 0, maxLen)
	onPath := make([]bool, len(nodes))

	var visit func(start, v int)
	visit = func(start, v int) {
		for _, w := range adj[v] {
			if w == start {
				if len(path) >= 2 {
					c := make([]domain.Currency, len(path))
					for i, idx := range path {
						c[i] = nodes[idx]
					}
					out = append(out, c)
				}
				continue
			}
			// Only nodes ordered after start, so each cycle is rooted once.
			if w < start || onPath[w] || len(path) >= maxLen {
				continue
			}
			onPath[w] = true
			path = append(path, w)
			visit(start, w)
			path = path[:len(path)-1]
			onPath[w] = false
		}
	}

	for s := range nodes {
		onPath[s] = true
		path = append(path[:0], s)
		visit(s, s)
		onPath[s] = false
	}
	return out
}

// Rotations returns the k cyclic rotations of a length-k cycle, starting with
// the cycle itself.
func Rotations(c []domain.Currency) [][]domain.Currency {
	k := len(c)
	out := make([][]domain.Currency, 0, k)
	for r := 0; r < k; r++ {
		rot := make([]domain.Currency, 0, k)
		rot = append(rot, c[r:]...)
		rot = append(rot, c[:r]...)
		out = append(out, rot)
	}
	return out
}

// MinLen is the shortest cycle worth scanning. A two-currency cycle is a
// round trip on one pair.
const MinLen = 3

// Anchored enumerates the simple cycles of g with length in [minLen, maxLen]
// and keeps every rotation whose first currency is anchor. Rotations that
// happen to coincide are kept; the result is not deduplicated.
func Anchored(g *graph.Graph, anchor domain.Currency, minLen, maxLen int) ([]domain.Cycle, error) {
	if minLen < MinLen || maxLen < minLen {
		return nil, fmt.Errorf("cycle: bounds [%d, %d]: %w", minLen, maxLen, domain.ErrInvalidCycleBounds)
	}

	var out []domain.Cycle
	for _, raw := range Simple(g, maxLen) {
		if len(raw) < minLen || len(raw) > maxLen {
			continue
		}
		for _, rot := range Rotations(raw) {
			if rot[0] == anchor {
				out = append(out, domain.Cycle(rot))
			}
		}
	}
	return out, nil
}
