package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNewFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), ClientConfig{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: ping")
}

func TestPublishSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewSignalBus(c, 0)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, "triarb:opportunities")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "triarb:opportunities", []byte(`{"profit":1.02}`)))
	select {
	case got := <-ch:
		assert.JSONEq(t, `{"profit":1.02}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPatternSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewSignalBus(c, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx, "triarb:*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "triarb:reports", []byte("x")))
	select {
	case got := <-ch:
		assert.Equal(t, "x", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestStreamAppendAndRead(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewSignalBus(c, 100)
	ctx := context.Background()

	msgs, err := bus.StreamRead(ctx, "triarb:reports", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, bus.StreamAppend(ctx, "triarb:reports", []byte(p)))
	}

	msgs, err = bus.StreamRead(ctx, "triarb:reports", "0", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", string(msgs[0].Payload))
	assert.Equal(t, "b", string(msgs[1].Payload))

	rest, err := bus.StreamRead(ctx, "triarb:reports", msgs[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", string(rest[0].Payload))
}

func TestCooldown(t *testing.T) {
	c, mr := newTestClient(t)
	cd := NewCooldown(c, "")
	ctx := context.Background()

	ok, err := cd.Allow(ctx, "USDT→BTC→ETH→USDT", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("triarb:cooldown:USDT→BTC→ETH→USDT"))

	ok, err = cd.Allow(ctx, "USDT→BTC→ETH→USDT", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = cd.Allow(ctx, "USDT→BTC→ETH→USDT", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
