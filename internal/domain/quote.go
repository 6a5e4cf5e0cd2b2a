package domain

import "context"

// Quote is the top of book for one symbol on one source. Last write wins.
type Quote struct {
	Ask float64
	Bid float64
}

// QuoteReader is the read-only view of a source's quote table. Absent keys
// are a valid state meaning no rate is known yet.
type QuoteReader interface {
	Source() SourceID
	Contains(key string) bool
	Bid(key string) float64
	Ask(key string) float64
	Len() int
}

// QuoteWriter is handed to exactly one ingestion task, the table's owner.
type QuoteWriter interface {
	Set(key string, q Quote)
	// Update applies fn to the current quote (zero when absent) and stores
	// the result.
	Update(key string, fn func(Quote) Quote)
}

// Source is the capability set every exchange integration implements.
type Source interface {
	ID() SourceID
	// FeeRate is the venue's advertised taker fee. Informational only.
	FeeRate() float64
	// Markets returns the tradable symbols at bootstrap time.
	Markets(ctx context.Context) ([]Market, error)
	// Stream connects, subscribes to markets and writes every top-of-book
	// update into w until ctx is cancelled or the connection drops.
	Stream(ctx context.Context, markets []Market, w QuoteWriter) error
}
