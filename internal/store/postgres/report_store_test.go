package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// setupTestDB starts a throwaway PostgreSQL container and migrates it.
func setupTestDB(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in -short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("triarb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := New(ctx, ClientConfig{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	require.NoError(t, client.RunMigrations(ctx))
	// A second run finds every file already applied.
	require.NoError(t, client.RunMigrations(ctx))
	return client
}

func report(id string, ts time.Time, profit float64) domain.Report {
	opp := domain.Opportunity{
		Cycle: domain.Cycle{"USDT", "BTC", "ETH"},
		Legs: []domain.Leg{
			{Pair: "USDT/BTC", Rate: 0.00004, Source: "kucoin"},
			{Pair: "BTC/ETH", Rate: 16, Source: "binanceus", Reversed: true},
			{Pair: "ETH/USDT", Rate: 2500, Source: "kucoin"},
		},
		Profit: profit,
	}
	return domain.NewReport(id, ts, opp, 250*time.Microsecond)
}

func TestReportStoreRoundTrip(t *testing.T) {
	store := NewReportStore(setupTestDB(t).Pool())
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)

	want := report("11111111-1111-1111-1111-111111111111", ts, 1.576)
	want.Degraded = true
	require.NoError(t, store.Insert(ctx, want))
	require.NoError(t, store.Insert(ctx, want), "duplicate insert is ignored")

	got, err := store.GetByID(ctx, want.ID)
	require.NoError(t, err)
	assert.True(t, ts.Equal(got.Timestamp))
	assert.Equal(t, want.Cycle, got.Cycle)
	assert.Equal(t, want.Legs, got.Legs)
	assert.Equal(t, want.Profit, got.Profit)
	assert.True(t, got.Found)
	assert.True(t, got.Degraded)
	assert.Equal(t, want.Duration, got.Duration)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReportStoreListAndCount(t *testing.T) {
	store := NewReportStore(setupTestDB(t).Pool())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, report("a", base, 1.01)))
	require.NoError(t, store.Insert(ctx, report("b", base.Add(time.Second), 0.98)))
	require.NoError(t, store.Insert(ctx, report("c", base.Add(2*time.Second), 1.02)))
	empty := domain.NewReport("d", base.Add(3*time.Second), domain.Opportunity{}, 0)
	require.NoError(t, store.Insert(ctx, empty))

	all, err := store.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "d", all[0].ID)
	assert.Empty(t, all[0].Cycle)
	assert.Empty(t, all[0].Legs)

	found, err := store.List(ctx, domain.ListOpts{FoundOnly: true})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "c", found[0].ID)
	assert.Equal(t, "a", found[1].ID)

	since := base.Add(time.Second)
	page, err := store.List(ctx, domain.ListOpts{Since: &since, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ID)

	n, err := store.CountFound(ctx, base.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/triarb?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "triarb", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}
