package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// ReportStore implements domain.OpportunityStore on the scan_reports table.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore creates a ReportStore backed by pool.
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

const reportSelectCols = `id, detected_at, cycle, legs, profit, found, degraded, duration_ns`

// Insert stores r. Inserting the same id twice is a no-op.
func (s *ReportStore) Insert(ctx context.Context, r domain.Report) error {
	const query = `
		INSERT INTO scan_reports (
			id, detected_at, cycle, legs, profit, found, degraded, duration_ns
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	legs := r.Legs
	if legs == nil {
		legs = []domain.Leg{}
	}
	legsJSON, err := json.Marshal(legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal legs %s: %w", r.ID, err)
	}
	cycle := make([]string, len(r.Cycle))
	for i, c := range r.Cycle {
		cycle[i] = string(c)
	}

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.Timestamp, cycle, legsJSON,
		r.Profit, r.Found, r.Degraded, r.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert report %s: %w", r.ID, err)
	}
	return nil
}

// GetByID returns the report with id or domain.ErrNotFound.
func (s *ReportStore) GetByID(ctx context.Context, id string) (domain.Report, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reportSelectCols+` FROM scan_reports WHERE id = $1`, id)
	r, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Report{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Report{}, fmt.Errorf("postgres: get report %s: %w", id, err)
	}
	return r, nil
}

// List returns reports newest first.
func (s *ReportStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Report, error) {
	var (
		where []string
		args  []any
	)
	if opts.FoundOnly {
		where = append(where, "found")
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		where = append(where, fmt.Sprintf("detected_at >= $%d", len(args)))
	}

	query := `SELECT ` + reportSelectCols + ` FROM scan_reports`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY detected_at DESC, id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reports: %w", err)
	}
	defer rows.Close()

	var out []domain.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list reports rows: %w", err)
	}
	return out, nil
}

// CountFound returns how many profitable reports were stored since t.
func (s *ReportStore) CountFound(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scan_reports WHERE found AND detected_at >= $1`, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count found reports: %w", err)
	}
	return n, nil
}

func scanReport(row pgx.Row) (domain.Report, error) {
	var (
		r          domain.Report
		cycle      []string
		legsJSON   []byte
		durationNs int64
	)
	if err := row.Scan(&r.ID, &r.Timestamp, &cycle, &legsJSON, &r.Profit, &r.Found, &r.Degraded, &durationNs); err != nil {
		return domain.Report{}, err
	}
	if err := json.Unmarshal(legsJSON, &r.Legs); err != nil {
		return domain.Report{}, fmt.Errorf("decode legs: %w", err)
	}
	if len(cycle) > 0 {
		r.Cycle = make([]domain.Currency, len(cycle))
		for i, c := range cycle {
			r.Cycle[i] = domain.Currency(c)
		}
	}
	r.Duration = time.Duration(durationNs)
	return r, nil
}

var _ domain.OpportunityStore = (*ReportStore)(nil)
