package quote

import (
	"github.com/alanyoungcy/triarb/internal/domain"
)

// Book is the ordered set of quote tables a resolver pass reads. Order is
// significant: it decides which source wins a tie on a leg. The origin
// source is expected first.
type Book struct {
	readers []domain.QuoteReader
	index   map[domain.SourceID]domain.QuoteReader
}

// NewBook builds a Book over readers in the given order.
func NewBook(readers ...domain.QuoteReader) *Book {
	b := &Book{
		readers: readers,
		index:   make(map[domain.SourceID]domain.QuoteReader, len(readers)),
	}
	for _, r := range readers {
		b.index[r.Source()] = r
	}
	return b
}

// Readers returns the tables in tie-break order.
func (b *Book) Readers() []domain.QuoteReader { return b.readers }

// Reader returns the table of source.
func (b *Book) Reader(source domain.SourceID) (domain.QuoteReader, bool) {
	r, ok := b.index[source]
	return r, ok
}

// Ready reports whether every table holds at least one quote. A book with no
// tables is never ready.
func (b *Book) Ready() bool {
	if len(b.readers) == 0 {
		return false
	}
	for _, r := range b.readers {
		if r.Len() == 0 {
			return false
		}
	}
	return true
}

// Empty lists the sources whose tables are still empty.
func (b *Book) Empty() []domain.SourceID {
	var out []domain.SourceID
	for _, r := range b.readers {
		if r.Len() == 0 {
			out = append(out, r.Source())
		}
	}
	return out
}

// Sizes returns the number of quoted symbols per source.
func (b *Book) Sizes() map[domain.SourceID]int {
	out := make(map[domain.SourceID]int, len(b.readers))
	for _, r := range b.readers {
		out[r.Source()] = r.Len()
	}
	return out
}
