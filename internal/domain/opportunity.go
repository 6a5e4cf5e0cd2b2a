package domain

import (
	"strings"
	"time"
)

// Cycle is an ordered sequence of distinct currencies. The hop after the last
// element returns to the first.
type Cycle []Currency

// Leg returns the pair traded at hop i: c[i] -> c[(i+1) mod k].
func (c Cycle) Leg(i int) Pair {
	return Pair{Base: c[i], Quote: c[(i+1)%len(c)]}
}

// String renders the cycle as "USDT→BTC→ETH→USDT".
func (c Cycle) String() string {
	if len(c) == 0 {
		return ""
	}
	parts := make([]string, 0, len(c)+1)
	for _, cur := range c {
		parts = append(parts, string(cur))
	}
	parts = append(parts, string(c[0]))
	return strings.Join(parts, "→")
}

// Leg is one resolved hop of a cycle.
type Leg struct {
	Pair     string   `json:"pair"` // "BASE/QUOTE"
	Rate     float64  `json:"rate"`
	Source   SourceID `json:"source,omitempty"` // empty when no source quoted the hop
	Reversed bool     `json:"reversed"`
}

// Resolved reports whether the leg has a usable rate.
func (l Leg) Resolved() bool {
	return l.Source != "" && l.Rate != 0
}

// Opportunity is the best-scoring cycle of one scan pass.
type Opportunity struct {
	Cycle  Cycle
	Legs   []Leg
	Profit float64
}

// Profitable reports whether the compounded rate beats break-even.
func (o Opportunity) Profitable() bool {
	return o.Profit > 1
}

// Report is the record emitted to reporting sinks on every scan tick.
type Report struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Cycle     []Currency    `json:"cycle,omitempty"`
	Legs      []Leg         `json:"legs"`
	Profit    float64       `json:"profit"`
	Found     bool          `json:"found"`
	Duration  time.Duration `json:"duration_ns"`
	Degraded  bool          `json:"degraded,omitempty"`
}

// NewReport builds the tick record for opp.
func NewReport(id string, ts time.Time, opp Opportunity, took time.Duration) Report {
	legs := opp.Legs
	if legs == nil {
		legs = []Leg{}
	}
	return Report{
		ID:        id,
		Timestamp: ts,
		Cycle:     opp.Cycle,
		Legs:      legs,
		Profit:    opp.Profit,
		Found:     opp.Profitable(),
		Duration:  took,
	}
}
