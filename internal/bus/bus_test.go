package bus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New(testLogger())

	var a, c atomic.Int32
	b.Subscribe(domain.EventSignal, func(ctx context.Context, e domain.Event) error {
		a.Add(1)
		return nil
	})
	b.Subscribe(domain.EventSignal, func(ctx context.Context, e domain.Event) error {
		c.Add(1)
		return nil
	})

	err := b.Publish(context.Background(), domain.Event{Kind: domain.EventSignal})
	require.NoError(t, err)
	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(1), c.Load())
}

func TestPublishIgnoresOtherKinds(t *testing.T) {
	b := New(testLogger())

	var signals, prices atomic.Int32
	b.Subscribe(domain.EventSignal, func(ctx context.Context, e domain.Event) error {
		signals.Add(1)
		return nil
	})
	b.Subscribe(domain.EventPriceUpdate, func(ctx context.Context, e domain.Event) error {
		prices.Add(1)
		return nil
	})

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, domain.Event{Kind: domain.EventMarketCapUpdate}))
	assert.Zero(t, signals.Load())
	assert.Zero(t, prices.Load())

	require.NoError(t, b.Publish(ctx, domain.Event{Kind: domain.EventPriceUpdate}))
	assert.Zero(t, signals.Load())
	assert.Equal(t, int32(1), prices.Load())
}

func TestHandlerFailureDoesNotAffectOthers(t *testing.T) {
	b := New(testLogger())

	failure := errors.New("handler exploded")
	var survived atomic.Bool
	b.Subscribe(domain.EventSignal, func(ctx context.Context, e domain.Event) error {
		return failure
	})
	b.Subscribe(domain.EventSignal, func(ctx context.Context, e domain.Event) error {
		survived.Store(true)
		return nil
	})

	err := b.Publish(context.Background(), domain.Event{Kind: domain.EventSignal})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.True(t, survived.Load(), "second handler must still run")
}

func TestSlowHandlerDoesNotBlockOthers(t *testing.T) {
	b := New(testLogger())

	release := make(chan struct{})
	fastDone := make(chan struct{})
	b.Subscribe(domain.EventSignal, func(ctx context.Context, e domain.Event) error {
		<-release
		return nil
	})
	b.Subscribe(domain.EventSignal, func(ctx context.Context, e domain.Event) error {
		close(fastDone)
		return nil
	})

	published := make(chan error, 1)
	go func() {
		published <- b.Publish(context.Background(), domain.Event{Kind: domain.EventSignal})
	}()

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("fast handler blocked behind slow handler")
	}

	close(release)
	require.NoError(t, <-published)
}

func TestUnsubscribeRemovesExactRegistration(t *testing.T) {
	b := New(testLogger())

	var first, second atomic.Int32
	sub1 := b.Subscribe(domain.EventSignal, func(ctx context.Context, e domain.Event) error {
		first.Add(1)
		return nil
	})
	b.Subscribe(domain.EventSignal, func(ctx context.Context, e domain.Event) error {
		second.Add(1)
		return nil
	})
	require.Equal(t, 2, b.SubscriberCount(domain.EventSignal))

	b.Unsubscribe(sub1)
	require.Equal(t, 1, b.SubscriberCount(domain.EventSignal))

	require.NoError(t, b.Publish(context.Background(), domain.Event{Kind: domain.EventSignal}))
	assert.Zero(t, first.Load())
	assert.Equal(t, int32(1), second.Load())

	// Unsubscribing twice is a no-op.
	b.Unsubscribe(sub1)
	b.Unsubscribe(nil)
	assert.Equal(t, 1, b.SubscriberCount(domain.EventSignal))
}

func TestSequentialPublishesPreserveOrderPerHandler(t *testing.T) {
	b := New(testLogger())

	var mu sync.Mutex
	var seen []int
	b.Subscribe(domain.EventSignal, func(ctx context.Context, e domain.Event) error {
		mu.Lock()
		seen = append(seen, e.Payload.(int))
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Publish(ctx, domain.Event{Kind: domain.EventSignal, Payload: i}))
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}
