package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/bus"
	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/platform/dexscreener"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFetcher records every batch request and serves canned pairs per
// network, optionally failing a chosen network.
type fakeFetcher struct {
	mu          sync.Mutex
	batches     [][]string
	pairs       map[string][]dexscreener.Pair
	failNetwork string
}

func (f *fakeFetcher) GetPairsByToken(_ context.Context, network string, addresses []string) ([]dexscreener.Pair, error) {
	f.mu.Lock()
	batch := make([]string, len(addresses))
	copy(batch, addresses)
	f.batches = append(f.batches, batch)
	f.mu.Unlock()

	if network == f.failNetwork {
		return nil, errors.New("upstream unavailable")
	}
	return f.pairs[network], nil
}

func (f *fakeFetcher) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.batches))
	for i, b := range f.batches {
		sizes[i] = len(b)
	}
	return sizes
}

// collectUpdates subscribes a handler that appends every market-cap update to
// a slice guarded by mu.
func collectUpdates(b *bus.Bus) (*sync.Mutex, *[]domain.MarketCapUpdate) {
	var mu sync.Mutex
	updates := []domain.MarketCapUpdate{}
	b.Subscribe(domain.EventMarketCapUpdate, func(_ context.Context, e domain.Event) error {
		upd := e.Payload.(domain.MarketCapUpdate)
		mu.Lock()
		updates = append(updates, upd)
		mu.Unlock()
		return nil
	})
	return &mu, &updates
}

func TestPollOncePublishesMarketCapUpdates(t *testing.T) {
	b := bus.New(testLogger())
	mu, updates := collectUpdates(b)

	fetcher := &fakeFetcher{pairs: map[string][]dexscreener.Pair{
		"solana": {
			{BaseToken: dexscreener.APIToken{Address: "0xabc"}, MarketCap: 5_000_000},
			{BaseToken: dexscreener.APIToken{Address: "0xdef"}, FDV: 1_000_000},
		},
	}}
	p := NewPoller(fetcher, b, time.Minute, testLogger())
	p.Subscribe("solana", "0xabc")
	p.Subscribe("solana", "0xdef")

	p.pollOnce(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *updates, 2)
	byAddr := map[string]float64{}
	for _, u := range *updates {
		byAddr[u.Address] = u.MarketCap
	}
	assert.InDelta(t, 5_000_000.0, byAddr["0xabc"], 1e-9)
	// FDV stands in when no explicit market cap is reported.
	assert.InDelta(t, 1_000_000.0, byAddr["0xdef"], 1e-9)
}

func TestPollOnceChunksByAPILimit(t *testing.T) {
	b := bus.New(testLogger())
	fetcher := &fakeFetcher{}
	p := NewPoller(fetcher, b, time.Minute, testLogger())

	for i := 0; i < dexscreener.MaxAddressesPerRequest+5; i++ {
		p.Subscribe("solana", fmt.Sprintf("addr-%03d", i))
	}
	p.pollOnce(context.Background())

	sizes := fetcher.batchSizes()
	require.Len(t, sizes, 2)
	total := 0
	for _, s := range sizes {
		assert.LessOrEqual(t, s, dexscreener.MaxAddressesPerRequest)
		total += s
	}
	assert.Equal(t, dexscreener.MaxAddressesPerRequest+5, total)
}

func TestPollOnceGroupsByNetwork(t *testing.T) {
	b := bus.New(testLogger())
	mu, updates := collectUpdates(b)

	fetcher := &fakeFetcher{pairs: map[string][]dexscreener.Pair{
		"solana": {{BaseToken: dexscreener.APIToken{Address: "0xaaa"}, MarketCap: 100}},
		"base":   {{BaseToken: dexscreener.APIToken{Address: "0xbbb"}, MarketCap: 200}},
	}}
	p := NewPoller(fetcher, b, time.Minute, testLogger())
	p.Subscribe("solana", "0xaaa")
	p.Subscribe("base", "0xbbb")

	p.pollOnce(context.Background())

	assert.Len(t, fetcher.batchSizes(), 2)
	mu.Lock()
	defer mu.Unlock()
	networks := map[string]bool{}
	for _, u := range *updates {
		networks[u.Network] = true
	}
	assert.True(t, networks["solana"])
	assert.True(t, networks["base"])
}

func TestFailingBatchDoesNotBlockOthers(t *testing.T) {
	b := bus.New(testLogger())
	mu, updates := collectUpdates(b)

	fetcher := &fakeFetcher{
		failNetwork: "base",
		pairs: map[string][]dexscreener.Pair{
			"solana": {{BaseToken: dexscreener.APIToken{Address: "0xaaa"}, MarketCap: 100}},
		},
	}
	p := NewPoller(fetcher, b, time.Minute, testLogger())
	p.Subscribe("solana", "0xaaa")
	p.Subscribe("base", "0xbbb")

	p.pollOnce(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *updates, 1)
	assert.Equal(t, "0xaaa", (*updates)[0].Address)
}

func TestZeroMarketCapPairsSkipped(t *testing.T) {
	b := bus.New(testLogger())
	mu, updates := collectUpdates(b)

	fetcher := &fakeFetcher{pairs: map[string][]dexscreener.Pair{
		"solana": {
			{BaseToken: dexscreener.APIToken{Address: "0xaaa"}},
			{MarketCap: 500},
		},
	}}
	p := NewPoller(fetcher, b, time.Minute, testLogger())
	p.Subscribe("solana", "0xaaa")

	p.pollOnce(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, *updates)
}

func TestUnsubscribeStopsPolling(t *testing.T) {
	b := bus.New(testLogger())
	fetcher := &fakeFetcher{}
	p := NewPoller(fetcher, b, time.Minute, testLogger())

	p.Subscribe("solana", "0xaaa")
	require.True(t, p.IsSubscribed("solana", "0xaaa"))
	p.Unsubscribe("solana", "0xaaa")
	assert.False(t, p.IsSubscribed("solana", "0xaaa"))

	p.pollOnce(context.Background())
	assert.Empty(t, fetcher.batchSizes())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	b := bus.New(testLogger())
	p := NewPoller(&fakeFetcher{}, b, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}
