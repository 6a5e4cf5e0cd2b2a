// Package quote holds the per-source top-of-book tables. Each table has a
// single writer, the ingestion task of its source, and any number of readers.
package quote

import (
	"sync"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Table maps normalized pair keys (lower(base+quote)) to the latest quote of
// one source.
type Table struct {
	source domain.SourceID

	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

// NewTable creates an empty table for source.
func NewTable(source domain.SourceID) *Table {
	return &Table{
		source: source,
		quotes: make(map[string]domain.Quote),
	}
}

// Source returns the owning source id.
func (t *Table) Source() domain.SourceID { return t.source }

// Set stores q under key, replacing any previous value.
func (t *Table) Set(key string, q domain.Quote) {
	t.mu.Lock()
	t.quotes[key] = q
	t.mu.Unlock()
}

// Update replaces the quote under key with fn(current).
func (t *Table) Update(key string, fn func(domain.Quote) domain.Quote) {
	t.mu.Lock()
	t.quotes[key] = fn(t.quotes[key])
	t.mu.Unlock()
}

// Get returns the quote under key.
func (t *Table) Get(key string) (domain.Quote, bool) {
	t.mu.RLock()
	q, ok := t.quotes[key]
	t.mu.RUnlock()
	return q, ok
}

// Contains reports whether key has ever been written.
func (t *Table) Contains(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Bid returns the best bid under key, 0 when absent.
func (t *Table) Bid(key string) float64 {
	q, _ := t.Get(key)
	return q.Bid
}

// Ask returns the best ask under key, 0 when absent.
func (t *Table) Ask(key string) float64 {
	q, _ := t.Get(key)
	return q.Ask
}

// Len returns the number of keys written so far.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.quotes)
}

// Reader returns the read-only view handed to the scan task.
func (t *Table) Reader() domain.QuoteReader {
	return reader{t: t}
}

// Writer returns the mutation handle handed to the owning ingestion task.
func (t *Table) Writer() domain.QuoteWriter {
	return t
}

// reader hides the mutating methods of Table behind domain.QuoteReader.
type reader struct {
	t *Table
}

func (r reader) Source() domain.SourceID  { return r.t.source }
func (r reader) Contains(key string) bool { return r.t.Contains(key) }
func (r reader) Bid(key string) float64   { return r.t.Bid(key) }
func (r reader) Ask(key string) float64   { return r.t.Ask(key) }
func (r reader) Len() int                 { return r.t.Len() }
