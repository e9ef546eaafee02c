package geocode

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/icewatch/internal/observability"
)

func newCached(t *testing.T, inner Reverser, size int) (*CachedReverser, *observability.Metrics) {
	t.Helper()
	cache, err := NewLRUCache(size)
	require.NoError(t, err)
	m := observability.NewMetricsForTesting()
	var buf bytes.Buffer
	return NewCachedReverser(inner, cache, m, testLogger(&buf)), m
}

func TestCachedReverserHit(t *testing.T) {
	inner := &stubReverser{place: Place{Category: "water", DisplayName: "Jezioro Mikołajskie"}}
	cached, m := newCached(t, inner, 10)

	p1, err := cached.Reverse(context.Background(), 53.757, 21.735)
	require.NoError(t, err)
	p2, err := cached.Reverse(context.Background(), 53.757, 21.735)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("miss")))
}

func TestCachedReverserRoundsKey(t *testing.T) {
	inner := &stubReverser{place: Place{Category: "water"}}
	cached, _ := newCached(t, inner, 10)

	_, _ = cached.Reverse(context.Background(), 53.757000, 21.735000)
	_, _ = cached.Reverse(context.Background(), 53.757001, 21.735001)
	assert.Equal(t, 1, inner.calls)

	_, _ = cached.Reverse(context.Background(), 53.758, 21.735)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedReverserDoesNotCacheErrors(t *testing.T) {
	inner := &stubReverser{err: errors.New("boom")}
	cached, _ := newCached(t, inner, 10)

	_, err := cached.Reverse(context.Background(), 53.757, 21.735)
	assert.Error(t, err)
	_, err = cached.Reverse(context.Background(), 53.757, 21.735)
	assert.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestLRUCacheEvicts(t *testing.T) {
	c, err := NewLRUCache(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", Place{Type: "a"}))
	require.NoError(t, c.Set(ctx, "b", Place{Type: "b"}))
	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", Place{Type: "c"}))

	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry should be evicted")
	p, ok, _ := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, "a", p.Type)
	assert.Equal(t, 2, c.Len())
}

func TestNewLRUCacheRejectsZeroSize(t *testing.T) {
	_, err := NewLRUCache(0)
	assert.Error(t, err)
}
