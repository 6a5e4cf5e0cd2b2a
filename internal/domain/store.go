package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit     int
	Offset    int
	Since     *time.Time
	FoundOnly bool
}

// OpportunityStore persists scan reports.
type OpportunityStore interface {
	Insert(ctx context.Context, r Report) error
	GetByID(ctx context.Context, id string) (Report, error)
	List(ctx context.Context, opts ListOpts) ([]Report, error)
	CountFound(ctx context.Context, since time.Time) (int64, error)
}

// ReportSink receives the record of every scan tick.
type ReportSink interface {
	Emit(ctx context.Context, r Report) error
}
