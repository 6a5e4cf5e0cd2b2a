package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rediscache "github.com/alanyoungcy/triarb/internal/cache/redis"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
	"github.com/alanyoungcy/triarb/internal/notify"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func sample(profit float64) domain.Report {
	opp := domain.Opportunity{
		Cycle: domain.Cycle{"USDT", "BTC", "ETH"},
		Legs: []domain.Leg{
			{Pair: "USDT/BTC", Rate: 0.00004, Source: "kucoin"},
			{Pair: "BTC/ETH", Rate: 0.5, Source: "coinbase", Reversed: true},
			{Pair: "ETH/USDT", Rate: 2500, Source: "kucoin"},
		},
		Profit: profit,
	}
	return domain.NewReport("r1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), opp, time.Millisecond)
}

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	require.NoError(t, sink.Emit(context.Background(), sample(0.9)))
	assert.Empty(t, buf.String(), "unprofitable ticks log at debug")

	require.NoError(t, sink.Emit(context.Background(), sample(1.2)))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "opportunity found", rec["msg"])
	assert.Equal(t, "USDT→BTC→ETH→USDT", rec["cycle"])
	assert.Equal(t, "report", rec["component"])

	legs := rec["legs"].(map[string]any)
	leg1 := legs["leg1"].(map[string]any)
	assert.Equal(t, "coinbase", leg1["source"])
	assert.Equal(t, 2.0, leg1["reversed_from"])
}

func TestBusSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := rediscache.New(context.Background(), rediscache.ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	bus := rediscache.NewSignalBus(client, 100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := bus.Subscribe(ctx, "triarb:opportunities")
	require.NoError(t, err)

	sink := NewBusSink(bus, "triarb:opportunities", "triarb:reports")
	require.NoError(t, sink.Emit(ctx, sample(1.1)))

	select {
	case payload := <-sub:
		var got domain.Report
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, "r1", got.ID)
		assert.True(t, got.Found)
	case <-time.After(2 * time.Second):
		t.Fatal("report not published")
	}

	msgs, err := bus.StreamRead(ctx, "triarb:reports", "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, string(msgs[0].Payload), `"profit":1.1`)
}

type recordAlerter struct {
	events   []string
	messages []string
}

func (r *recordAlerter) Notify(_ context.Context, event, _, message string) error {
	r.events = append(r.events, event)
	r.messages = append(r.messages, message)
	return nil
}

func TestNotifySinkCooldown(t *testing.T) {
	alerts := &recordAlerter{}
	cd := NewMemoryCooldown()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cd.now = func() time.Time { return now }
	sink := NewNotifySink(alerts, cd, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, sink.Emit(ctx, sample(0.99)))
	assert.Empty(t, alerts.events)

	require.NoError(t, sink.Emit(ctx, sample(1.01)))
	require.NoError(t, sink.Emit(ctx, sample(1.02)))
	assert.Equal(t, []string{notify.EventOpportunityFound}, alerts.events)

	now = now.Add(31 * time.Second)
	require.NoError(t, sink.Emit(ctx, sample(1.03)))
	assert.Len(t, alerts.events, 2)
	assert.Contains(t, alerts.messages[0], "BTC/ETH @ 0.5 on coinbase (reversed)")
}

func TestNotifySinkWithRedisCooldown(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := rediscache.New(context.Background(), rediscache.ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	alerts := &recordAlerter{}
	sink := NewNotifySink(alerts, rediscache.NewCooldown(client, "triarb"), time.Minute)
	require.NoError(t, sink.Emit(context.Background(), sample(1.1)))
	require.NoError(t, sink.Emit(context.Background(), sample(1.1)))
	assert.Len(t, alerts.events, 1)
}

type memStore struct {
	domain.OpportunityStore
	inserted []domain.Report
	err      error
}

func (m *memStore) Insert(_ context.Context, r domain.Report) error {
	if m.err != nil {
		return m.err
	}
	m.inserted = append(m.inserted, r)
	return nil
}

func TestStoreSink(t *testing.T) {
	st := &memStore{}
	require.NoError(t, NewStoreSink(st, true).Emit(context.Background(), sample(0.5)))
	require.NoError(t, NewStoreSink(st, true).Emit(context.Background(), sample(1.5)))
	require.NoError(t, NewStoreSink(st, false).Emit(context.Background(), sample(0.5)))
	assert.Len(t, st.inserted, 2)
}

func TestLatest(t *testing.T) {
	l := NewLatest()
	_, ok := l.Get()
	assert.False(t, ok)

	require.NoError(t, l.Emit(context.Background(), sample(1.1)))
	got, ok := l.Get()
	assert.True(t, ok)
	assert.Equal(t, "r1", got.ID)
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	bad := &memStore{err: errors.New("db down")}
	latest := NewLatest()
	f := NewFanout(discard,
		Named{Name: "store_test", Sink: NewStoreSink(bad, false)},
		Named{Name: "latest", Sink: latest},
	)
	before := testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("store_test"))

	assert.NoError(t, f.Emit(context.Background(), sample(1.1)))
	_, ok := latest.Get()
	assert.True(t, ok)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("store_test")))
	assert.Equal(t, []string{"store_test", "latest"}, f.Names())
}
