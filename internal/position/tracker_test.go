package position

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/icewatch/internal/domain"
)

var lake = domain.Coordinate{Lat: 53.757, Lng: 21.735}

func fixAt(c domain.Coordinate) Fix {
	return Fix{Coordinate: c, Accuracy: 12, At: time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)}
}

func receive(t *testing.T, ch <-chan Fix) Fix {
	t.Helper()
	select {
	case f, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fix")
		return Fix{}
	}
}

func waitClosed(t *testing.T, ch <-chan Fix) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel was not closed")
		}
	}
}

func TestTrackerUnknownUntilPublished(t *testing.T) {
	tr := NewTracker()

	assert.Nil(t, tr.Position())
	assert.Equal(t, lake, tr.Center(lake))

	other := domain.Coordinate{Lat: 54, Lng: 21}
	tr.Publish(fixAt(other))

	require.NotNil(t, tr.Position())
	assert.Equal(t, other, *tr.Position())
	assert.Equal(t, other, tr.Center(lake))
}

func TestTrackerSubscribeReceivesLastAndNewFixes(t *testing.T) {
	tr := NewTracker()
	tr.Publish(fixAt(lake))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := tr.Subscribe(ctx, 4)

	assert.Equal(t, lake, receive(t, ch).Coordinate)

	next := domain.Coordinate{Lat: 53.758, Lng: 21.736}
	tr.Publish(fixAt(next))
	assert.Equal(t, next, receive(t, ch).Coordinate)
}

func TestTrackerUnsubscribesOnCancel(t *testing.T) {
	tr := NewTracker()
	ctx, cancel := context.WithCancel(context.Background())
	ch := tr.Subscribe(ctx, 1)
	assert.Equal(t, 1, tr.subscribers())

	cancel()
	waitClosed(t, ch)
	assert.Equal(t, 0, tr.subscribers())

	// Publishing after the subscriber left must not panic.
	tr.Publish(fixAt(lake))
}

func TestTrackerSlowSubscriberDoesNotBlock(t *testing.T) {
	tr := NewTracker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = tr.Subscribe(ctx, 0)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			tr.Publish(fixAt(lake))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestTrackerClose(t *testing.T) {
	tr := NewTracker()
	ch := tr.Subscribe(context.Background(), 1)

	tr.Close()
	waitClosed(t, ch)

	late := tr.Subscribe(context.Background(), 1)
	waitClosed(t, late)

	tr.Publish(fixAt(lake))
	assert.Nil(t, tr.Position())
	tr.Close()
}
